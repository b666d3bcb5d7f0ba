package repositories

import (
	"context"
	"errors"

	"teamchat-service/internal/models"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrTeamNotFound     = errors.New("team not found")
	ErrChannelNotFound  = errors.New("channel not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageSender = errors.New("not the message sender")
	ErrSelfDirectChat   = errors.New("cannot open a direct channel with self")
)

// UserRepository resolves user identities.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// TeamRepository abstracts team persistence.
type TeamRepository interface {
	GetTeam(ctx context.Context, teamID int) (models.Team, error)
	ListTeamsForUser(ctx context.Context, userID int) ([]models.Team, error)
	IsMember(ctx context.Context, teamID int, userID int) (bool, error)
	ListMembers(ctx context.Context, teamID int) ([]models.User, error)
	// AddMember adds the user to the team and to every non-DM channel of it.
	AddMember(ctx context.Context, teamID int, userID int) error
}

// ChannelRepository abstracts channel persistence.
type ChannelRepository interface {
	GetChannel(ctx context.Context, channelID int) (models.Channel, error)
	ListChannelsForUser(ctx context.Context, userID int) ([]models.Channel, error)
	ListTeamChannels(ctx context.Context, teamID int, userID int) ([]models.Channel, error)
	IsMember(ctx context.Context, channelID int, userID int) (bool, error)
	// CreateChannel creates a group channel whose members are the team roster.
	CreateChannel(ctx context.Context, teamID int, name, description string) (models.Channel, error)
	// CreateOrGetDirectChannel returns the DM channel for the unordered pair,
	// creating it when missing. created reports whether a row was inserted.
	CreateOrGetDirectChannel(ctx context.Context, teamID int, userID int, otherID int) (channel models.Channel, created bool, err error)
	ListInteractedUsers(ctx context.Context, userID int) ([]models.User, error)
}

// MessageRepository abstracts message persistence.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.NewMessage) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListChannelMessages(ctx context.Context, channelID int, limit int) ([]models.Message, error)
	EditMessage(ctx context.Context, messageID int, senderID int, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int, senderID int) error
	SetReaction(ctx context.Context, messageID int, username string, reaction string) (models.Message, error)
	// PinMessage clears any pinned message in the channel, then pins this one.
	PinMessage(ctx context.Context, messageID int) (models.Message, error)
	UnpinMessage(ctx context.Context, messageID int) (models.Message, error)
	GetAttachments(ctx context.Context, fileIDs []int) ([]models.FileAttachment, error)
}

// PresenceRepository abstracts presence persistence.
type PresenceRepository interface {
	SetPresence(ctx context.Context, userID int, teamID int, online bool) (models.Presence, error)
	// ListTeamPresences returns every team member; members without a row are offline.
	ListTeamPresences(ctx context.Context, teamID int) ([]models.Presence, error)
}

// Set bundles the gateway operations the chat core calls.
type Set struct {
	Users     UserRepository
	Teams     TeamRepository
	Channels  ChannelRepository
	Messages  MessageRepository
	Presences PresenceRepository
}
