// Package membership computes the fan-out groups a user belongs to.
package membership

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"teamchat-service/internal/executor"
	"teamchat-service/internal/groups"
	"teamchat-service/internal/models"
	"teamchat-service/internal/repositories"
)

// Groups is the membership snapshot taken at connect time.
type Groups struct {
	TeamIDs    []int
	ChannelIDs []int
}

// Keys returns the group keys for userID: the user group, then teams, then channels.
func (g Groups) Keys(userID int) []string {
	keys := make([]string, 0, 1+len(g.TeamIDs)+len(g.ChannelIDs))
	keys = append(keys, groups.UserKey(userID))
	for _, id := range g.TeamIDs {
		keys = append(keys, groups.TeamKey(id))
	}
	for _, id := range g.ChannelIDs {
		keys = append(keys, groups.ChannelKey(id))
	}
	return lo.Uniq(keys)
}

// Resolver reads team and channel membership from the gateway.
type Resolver struct {
	teams    repositories.TeamRepository
	channels repositories.ChannelRepository
	pool     *executor.Pool
	log      *slog.Logger
}

func NewResolver(teams repositories.TeamRepository, channels repositories.ChannelRepository, pool *executor.Pool, log *slog.Logger) *Resolver {
	return &Resolver{teams: teams, channels: channels, pool: pool, log: log}
}

// Resolve never fails. A gateway error drops the affected half of the result.
func (r *Resolver) Resolve(ctx context.Context, userID int) Groups {
	var out Groups

	teams, err := executor.Run(ctx, r.pool, func(ctx context.Context) ([]models.Team, error) {
		return r.teams.ListTeamsForUser(ctx, userID)
	})
	if err != nil {
		r.log.Warn("resolve teams failed", "user_id", userID, "error", err)
	} else {
		out.TeamIDs = lo.Uniq(lo.Map(teams, func(t models.Team, _ int) int { return t.ID }))
	}

	channels, err := executor.Run(ctx, r.pool, func(ctx context.Context) ([]models.Channel, error) {
		return r.channels.ListChannelsForUser(ctx, userID)
	})
	if err != nil {
		r.log.Warn("resolve channels failed", "user_id", userID, "error", err)
	} else {
		out.ChannelIDs = lo.Uniq(lo.Map(channels, func(c models.Channel, _ int) int { return c.ID }))
	}
	return out
}
