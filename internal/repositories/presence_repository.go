package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"teamchat-service/internal/models"
)

// PresenceRepo is a sqlx implementation of PresenceRepository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs a PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// SetPresence upserts the (user, team) presence row and refreshes last_seen.
func (r *PresenceRepo) SetPresence(ctx context.Context, userID int, teamID int, online bool) (models.Presence, error) {
	var presence models.Presence
	err := r.db.GetContext(ctx, &presence, `WITH upserted AS (
            INSERT INTO user_presences (user_id, team_id, online, last_seen) VALUES ($1, $2, $3, NOW())
            ON CONFLICT (user_id, team_id) DO UPDATE SET online = EXCLUDED.online, last_seen = EXCLUDED.last_seen
            RETURNING user_id, team_id, online, last_seen
        )
        SELECT p.user_id, u.username, p.team_id, p.online, p.last_seen
        FROM upserted p INNER JOIN users u ON u.id = p.user_id`, userID, teamID, online)
	return presence, err
}

// ListTeamPresences returns a full presence snapshot of the team roster.
func (r *PresenceRepo) ListTeamPresences(ctx context.Context, teamID int) ([]models.Presence, error) {
	var presences []models.Presence
	err := r.db.SelectContext(ctx, &presences, `SELECT u.id AS user_id, u.username, tm.team_id,
            COALESCE(p.online, FALSE) AS online, COALESCE(p.last_seen, to_timestamp(0)) AS last_seen
        FROM team_members tm
        INNER JOIN users u ON u.id = tm.user_id
        LEFT JOIN user_presences p ON p.user_id = tm.user_id AND p.team_id = tm.team_id
        WHERE tm.team_id=$1 ORDER BY u.id`, teamID)
	return presences, err
}
