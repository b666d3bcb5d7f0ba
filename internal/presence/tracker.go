// Package presence keeps per-team online state and announces transitions.
package presence

import (
	"context"
	"log/slog"

	"teamchat-service/internal/auth"
	"teamchat-service/internal/executor"
	"teamchat-service/internal/groups"
	"teamchat-service/internal/models"
	"teamchat-service/internal/repositories"
)

// Broadcaster is the part of the registry the tracker needs.
type Broadcaster interface {
	Broadcast(key string, env models.Envelope) int
	Count(key string) int
}

type Tracker struct {
	presences repositories.PresenceRepository
	hub       Broadcaster
	pool      *executor.Pool
	log       *slog.Logger
}

func NewTracker(presences repositories.PresenceRepository, hub Broadcaster, pool *executor.Pool, log *slog.Logger) *Tracker {
	return &Tracker{presences: presences, hub: hub, pool: pool, log: log}
}

// Connected marks the user online in every team and tells each team group.
func (t *Tracker) Connected(ctx context.Context, p auth.Principal, teamIDs []int) {
	t.transition(ctx, p, teamIDs, true)
}

// Disconnected marks the user offline, but only once their last connection
// has left the registry.
func (t *Tracker) Disconnected(ctx context.Context, p auth.Principal, teamIDs []int) {
	if remaining := t.hub.Count(groups.UserKey(p.UserID)); remaining > 0 {
		t.log.Debug("presence unchanged, user still connected", "user_id", p.UserID, "connections", remaining)
		return
	}
	t.transition(ctx, p, teamIDs, false)
}

func (t *Tracker) transition(ctx context.Context, p auth.Principal, teamIDs []int, online bool) {
	for _, teamID := range teamIDs {
		presence, err := executor.Run(ctx, t.pool, func(ctx context.Context) (models.Presence, error) {
			return t.presences.SetPresence(ctx, p.UserID, teamID, online)
		})
		if err != nil {
			t.log.Warn("presence update failed", "user_id", p.UserID, "team_id", teamID, "online", online, "error", err)
			continue
		}
		if presence.Username == "" {
			presence.Username = p.Username
		}
		t.hub.Broadcast(groups.TeamKey(teamID), models.Envelope{Type: models.EventUserPresence, Payload: presence})
	}
}

// Snapshot returns every member of the team with their current presence.
func (t *Tracker) Snapshot(ctx context.Context, teamID int) ([]models.Presence, error) {
	return executor.Run(ctx, t.pool, func(ctx context.Context) ([]models.Presence, error) {
		return t.presences.ListTeamPresences(ctx, teamID)
	})
}
