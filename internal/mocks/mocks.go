package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"teamchat-service/internal/models"
	"teamchat-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type TeamRepositoryMock struct {
	mock.Mock
}

func (m *TeamRepositoryMock) GetTeam(ctx context.Context, teamID int) (models.Team, error) {
	args := m.Called(ctx, teamID)
	var team models.Team
	if val := args.Get(0); val != nil {
		team = val.(models.Team)
	}
	return team, args.Error(1)
}

func (m *TeamRepositoryMock) ListTeamsForUser(ctx context.Context, userID int) ([]models.Team, error) {
	args := m.Called(ctx, userID)
	var list []models.Team
	if val := args.Get(0); val != nil {
		list = val.([]models.Team)
	}
	return list, args.Error(1)
}

func (m *TeamRepositoryMock) IsMember(ctx context.Context, teamID int, userID int) (bool, error) {
	args := m.Called(ctx, teamID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *TeamRepositoryMock) ListMembers(ctx context.Context, teamID int) ([]models.User, error) {
	args := m.Called(ctx, teamID)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

func (m *TeamRepositoryMock) AddMember(ctx context.Context, teamID int, userID int) error {
	args := m.Called(ctx, teamID, userID)
	return args.Error(0)
}

type ChannelRepositoryMock struct {
	mock.Mock
}

func (m *ChannelRepositoryMock) GetChannel(ctx context.Context, channelID int) (models.Channel, error) {
	args := m.Called(ctx, channelID)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *ChannelRepositoryMock) ListChannelsForUser(ctx context.Context, userID int) ([]models.Channel, error) {
	args := m.Called(ctx, userID)
	var list []models.Channel
	if val := args.Get(0); val != nil {
		list = val.([]models.Channel)
	}
	return list, args.Error(1)
}

func (m *ChannelRepositoryMock) ListTeamChannels(ctx context.Context, teamID int, userID int) ([]models.Channel, error) {
	args := m.Called(ctx, teamID, userID)
	var list []models.Channel
	if val := args.Get(0); val != nil {
		list = val.([]models.Channel)
	}
	return list, args.Error(1)
}

func (m *ChannelRepositoryMock) IsMember(ctx context.Context, channelID int, userID int) (bool, error) {
	args := m.Called(ctx, channelID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChannelRepositoryMock) CreateChannel(ctx context.Context, teamID int, name, description string) (models.Channel, error) {
	args := m.Called(ctx, teamID, name, description)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

func (m *ChannelRepositoryMock) CreateOrGetDirectChannel(ctx context.Context, teamID int, userID int, otherID int) (models.Channel, bool, error) {
	args := m.Called(ctx, teamID, userID, otherID)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Bool(1), args.Error(2)
}

func (m *ChannelRepositoryMock) ListInteractedUsers(ctx context.Context, userID int) ([]models.User, error) {
	args := m.Called(ctx, userID)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) message(args mock.Arguments) (models.Message, error) {
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	return m.message(m.Called(ctx, in))
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	return m.message(m.Called(ctx, messageID))
}

func (m *MessageRepositoryMock) ListChannelMessages(ctx context.Context, channelID int, limit int) ([]models.Message, error) {
	args := m.Called(ctx, channelID, limit)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID int, senderID int, content string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID, senderID, content))
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID int, senderID int) error {
	args := m.Called(ctx, messageID, senderID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SetReaction(ctx context.Context, messageID int, username string, reaction string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID, username, reaction))
}

func (m *MessageRepositoryMock) PinMessage(ctx context.Context, messageID int) (models.Message, error) {
	return m.message(m.Called(ctx, messageID))
}

func (m *MessageRepositoryMock) UnpinMessage(ctx context.Context, messageID int) (models.Message, error) {
	return m.message(m.Called(ctx, messageID))
}

func (m *MessageRepositoryMock) GetAttachments(ctx context.Context, fileIDs []int) ([]models.FileAttachment, error) {
	args := m.Called(ctx, fileIDs)
	var list []models.FileAttachment
	if val := args.Get(0); val != nil {
		list = val.([]models.FileAttachment)
	}
	return list, args.Error(1)
}

type PresenceRepositoryMock struct {
	mock.Mock
}

func (m *PresenceRepositoryMock) SetPresence(ctx context.Context, userID int, teamID int, online bool) (models.Presence, error) {
	args := m.Called(ctx, userID, teamID, online)
	var presence models.Presence
	if val := args.Get(0); val != nil {
		presence = val.(models.Presence)
	}
	return presence, args.Error(1)
}

func (m *PresenceRepositoryMock) ListTeamPresences(ctx context.Context, teamID int) ([]models.Presence, error) {
	args := m.Called(ctx, teamID)
	var list []models.Presence
	if val := args.Get(0); val != nil {
		list = val.([]models.Presence)
	}
	return list, args.Error(1)
}

var (
	_ repositories.UserRepository     = (*UserRepositoryMock)(nil)
	_ repositories.TeamRepository     = (*TeamRepositoryMock)(nil)
	_ repositories.ChannelRepository  = (*ChannelRepositoryMock)(nil)
	_ repositories.MessageRepository  = (*MessageRepositoryMock)(nil)
	_ repositories.PresenceRepository = (*PresenceRepositoryMock)(nil)
)
