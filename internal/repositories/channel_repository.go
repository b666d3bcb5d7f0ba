package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"teamchat-service/internal/models"
)

const channelColumns = `c.id, c.team_id, c.name, c.description, c.is_direct_message, c.created_at`

// ChannelRepo is a sqlx implementation of ChannelRepository.
type ChannelRepo struct {
	db *sqlx.DB
}

// NewChannelRepo constructs a ChannelRepo.
func NewChannelRepo(db *sqlx.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

// GetChannel fetches a channel by id.
func (r *ChannelRepo) GetChannel(ctx context.Context, channelID int) (models.Channel, error) {
	var channel models.Channel
	err := r.db.GetContext(ctx, &channel, `SELECT `+channelColumns+` FROM channels c WHERE c.id=$1`, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, ErrChannelNotFound
	}
	return channel, err
}

// ListChannelsForUser returns every channel, group or direct, the user belongs to.
func (r *ChannelRepo) ListChannelsForUser(ctx context.Context, userID int) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.SelectContext(ctx, &channels, `SELECT `+channelColumns+` FROM channels c
        INNER JOIN channel_members cm ON cm.channel_id = c.id
        WHERE cm.user_id=$1 ORDER BY c.id`, userID)
	return channels, err
}

// ListTeamChannels returns the channels of a team that the user belongs to.
func (r *ChannelRepo) ListTeamChannels(ctx context.Context, teamID int, userID int) ([]models.Channel, error) {
	var channels []models.Channel
	err := r.db.SelectContext(ctx, &channels, `SELECT `+channelColumns+` FROM channels c
        INNER JOIN channel_members cm ON cm.channel_id = c.id
        WHERE c.team_id=$1 AND cm.user_id=$2 ORDER BY c.id`, teamID, userID)
	return channels, err
}

// IsMember checks channel membership.
func (r *ChannelRepo) IsMember(ctx context.Context, channelID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM channel_members WHERE channel_id=$1 AND user_id=$2)`, channelID, userID)
	return exists, err
}

// CreateChannel creates a group channel and copies the team roster into it.
func (r *ChannelRepo) CreateChannel(ctx context.Context, teamID int, name, description string) (channel models.Channel, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Channel{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var teamExists bool
	if err = tx.GetContext(ctx, &teamExists, `SELECT EXISTS(SELECT 1 FROM teams WHERE id=$1)`, teamID); err != nil {
		return models.Channel{}, err
	}
	if !teamExists {
		err = ErrTeamNotFound
		return models.Channel{}, err
	}

	if err = tx.QueryRowxContext(ctx, `INSERT INTO channels (team_id, name, description, is_direct_message)
        VALUES ($1, $2, $3, FALSE) RETURNING id, team_id, name, description, is_direct_message, created_at`,
		teamID, name, description).StructScan(&channel); err != nil {
		return models.Channel{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO channel_members (channel_id, user_id)
        SELECT $1, tm.user_id FROM team_members tm WHERE tm.team_id=$2`, channel.ID, teamID); err != nil {
		return models.Channel{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// CreateOrGetDirectChannel returns the DM channel shared by two users in a team.
func (r *ChannelRepo) CreateOrGetDirectChannel(ctx context.Context, teamID int, userID int, otherID int) (models.Channel, bool, error) {
	if userID == otherID {
		return models.Channel{}, false, ErrSelfDirectChat
	}
	participants := []int{userID, otherID}
	sort.Ints(participants)
	user1, user2 := participants[0], participants[1]

	channel, err := r.findDirectChannel(ctx, teamID, user1, user2)
	if err == nil {
		return channel, false, nil
	}
	if !errors.Is(err, ErrChannelNotFound) {
		return models.Channel{}, false, err
	}

	channel, err = r.insertDirectChannel(ctx, teamID, user1, user2)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// lost the race against a concurrent create
			channel, err = r.findDirectChannel(ctx, teamID, user1, user2)
			return channel, false, err
		}
		return models.Channel{}, false, err
	}
	return channel, true, nil
}

func (r *ChannelRepo) findDirectChannel(ctx context.Context, teamID, user1, user2 int) (models.Channel, error) {
	var channel models.Channel
	err := r.db.GetContext(ctx, &channel, `SELECT `+channelColumns+` FROM channels c
        INNER JOIN direct_message_channels d ON d.channel_id = c.id
        WHERE d.team_id=$1 AND d.user1_id=$2 AND d.user2_id=$3`, teamID, user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Channel{}, ErrChannelNotFound
	}
	return channel, err
}

func (r *ChannelRepo) insertDirectChannel(ctx context.Context, teamID, user1, user2 int) (channel models.Channel, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Channel{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	name := fmt.Sprintf("dm-%d-%d", user1, user2)
	if err = tx.QueryRowxContext(ctx, `INSERT INTO channels (team_id, name, description, is_direct_message)
        VALUES ($1, $2, '', TRUE) RETURNING id, team_id, name, description, is_direct_message, created_at`,
		teamID, name).StructScan(&channel); err != nil {
		return models.Channel{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO direct_message_channels (channel_id, team_id, user1_id, user2_id)
        VALUES ($1, $2, $3, $4)`, channel.ID, teamID, user1, user2); err != nil {
		return models.Channel{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2), ($1, $3)`,
		channel.ID, user1, user2); err != nil {
		return models.Channel{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// ListInteractedUsers returns the users sharing at least one DM channel with userID.
func (r *ChannelRepo) ListInteractedUsers(ctx context.Context, userID int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT DISTINCT u.id, u.username, u.email FROM users u
        INNER JOIN direct_message_channels d
            ON (d.user1_id = $1 AND d.user2_id = u.id) OR (d.user2_id = $1 AND d.user1_id = u.id)
        ORDER BY u.id`, userID)
	return users, err
}
