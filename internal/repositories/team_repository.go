package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"teamchat-service/internal/models"
)

// TeamRepo is a sqlx implementation of TeamRepository.
type TeamRepo struct {
	db *sqlx.DB
}

// NewTeamRepo constructs a TeamRepo.
func NewTeamRepo(db *sqlx.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

// GetTeam fetches a single team.
func (r *TeamRepo) GetTeam(ctx context.Context, teamID int) (models.Team, error) {
	var team models.Team
	err := r.db.GetContext(ctx, &team, `SELECT id, name, description, created_at FROM teams WHERE id=$1`, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Team{}, ErrTeamNotFound
	}
	return team, err
}

// ListTeamsForUser returns teams that include the user.
func (r *TeamRepo) ListTeamsForUser(ctx context.Context, userID int) ([]models.Team, error) {
	var teams []models.Team
	err := r.db.SelectContext(ctx, &teams, `SELECT t.id, t.name, t.description, t.created_at FROM teams t
        INNER JOIN team_members tm ON tm.team_id = t.id
        WHERE tm.user_id=$1 ORDER BY t.id`, userID)
	return teams, err
}

// IsMember checks team membership.
func (r *TeamRepo) IsMember(ctx context.Context, teamID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id=$1 AND user_id=$2)`, teamID, userID)
	return exists, err
}

// ListMembers returns the team roster.
func (r *TeamRepo) ListMembers(ctx context.Context, teamID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT u.id, u.username, u.email FROM users u
        INNER JOIN team_members tm ON tm.user_id = u.id
        WHERE tm.team_id=$1 ORDER BY u.id`, teamID)
	return users, err
}

// AddMember adds a user to a team and all of its group channels atomically.
func (r *TeamRepo) AddMember(ctx context.Context, teamID int, userID int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var teamExists, userExists bool
	if err = tx.GetContext(ctx, &teamExists, `SELECT EXISTS(SELECT 1 FROM teams WHERE id=$1)`, teamID); err != nil {
		return err
	}
	if !teamExists {
		err = ErrTeamNotFound
		return err
	}
	if err = tx.GetContext(ctx, &userExists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID); err != nil {
		return err
	}
	if !userExists {
		err = ErrUserNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)
        ON CONFLICT (team_id, user_id) DO NOTHING`, teamID, userID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO channel_members (channel_id, user_id)
        SELECT c.id, $2 FROM channels c WHERE c.team_id=$1 AND c.is_direct_message = FALSE
        ON CONFLICT (channel_id, user_id) DO NOTHING`, teamID, userID); err != nil {
		return err
	}

	return tx.Commit()
}
