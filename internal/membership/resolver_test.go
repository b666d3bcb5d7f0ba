package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"teamchat-service/internal/executor"
	"teamchat-service/internal/mocks"
	"teamchat-service/internal/models"
	"teamchat-service/internal/observability"
)

func TestResolveTwoTeamsThreeChannels(t *testing.T) {
	teams := new(mocks.TeamRepositoryMock)
	channels := new(mocks.ChannelRepositoryMock)
	resolver := NewResolver(teams, channels, executor.NewPool(2), observability.DiscardLogger())

	teams.On("ListTeamsForUser", mock.Anything, 5).Return([]models.Team{{ID: 1}, {ID: 2}}, nil).Once()
	channels.On("ListChannelsForUser", mock.Anything, 5).Return([]models.Channel{{ID: 10}, {ID: 11}, {ID: 12, IsDirectMessage: true}}, nil).Once()

	g := resolver.Resolve(context.Background(), 5)

	require.Equal(t, []int{1, 2}, g.TeamIDs)
	require.Equal(t, []int{10, 11, 12}, g.ChannelIDs)
	require.Equal(t, []string{"user:5", "team:1", "team:2", "channel:10", "channel:11", "channel:12"}, g.Keys(5))
	teams.AssertExpectations(t)
	channels.AssertExpectations(t)
}

func TestResolveGatewayErrorYieldsPartialResult(t *testing.T) {
	teams := new(mocks.TeamRepositoryMock)
	channels := new(mocks.ChannelRepositoryMock)
	resolver := NewResolver(teams, channels, executor.NewPool(1), observability.DiscardLogger())

	teams.On("ListTeamsForUser", mock.Anything, 5).Return(([]models.Team)(nil), assert.AnError).Once()
	channels.On("ListChannelsForUser", mock.Anything, 5).Return([]models.Channel{{ID: 10}}, nil).Once()

	g := resolver.Resolve(context.Background(), 5)

	require.Empty(t, g.TeamIDs)
	require.Equal(t, []string{"user:5", "channel:10"}, g.Keys(5))
}

func TestKeysForUserWithoutMembership(t *testing.T) {
	require.Equal(t, []string{"user:3"}, Groups{}.Keys(3))
}
