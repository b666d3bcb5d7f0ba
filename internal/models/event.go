package models

// EventType is the discriminant of every outbound frame.
type EventType string

const (
	EventChatMessage      EventType = "chat_message"
	EventMessageEdited    EventType = "message_edited"
	EventMessageDeleted   EventType = "message_deleted"
	EventReactionUpdate   EventType = "reaction_update"
	EventMessagePinned    EventType = "message_pinned"
	EventMessageUnpinned  EventType = "message_unpinned"
	EventUserPresence     EventType = "user_presence"
	EventChannelCreated   EventType = "channel_created"
	EventMemberAdded      EventType = "member_added"
	EventTeamNotification EventType = "team_notification"

	// Reply-only frames, written to the requesting connection.
	EventChannelMessages EventType = "channel_messages"
	EventTeamMembers     EventType = "team_members"
	EventTeamChannels    EventType = "team_channels"
	EventUserPresences   EventType = "user_presences"
	EventInteractedUsers EventType = "interacted_users"
	EventDMChannel       EventType = "dm_channel"
)

// Envelope is emitted over websocket connections, both for group
// broadcasts and for direct replies.
type Envelope struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// MessageRef identifies a message inside a channel.
type MessageRef struct {
	MessageID int `json:"message_id"`
	ChannelID int `json:"channel_id"`
	TeamID    int `json:"team_id"`
}

// ReactionUpdate is the payload of reaction_update.
type ReactionUpdate struct {
	MessageRef
	Username  string    `json:"username"`
	Reaction  string    `json:"reaction"`
	Reactions Reactions `json:"reactions"`
}

// ChannelCreated is the payload of channel_created.
type ChannelCreated struct {
	Channel
	CreatedBy int `json:"created_by"`
}

// MemberAdded is the payload of member_added.
type MemberAdded struct {
	TeamID  int  `json:"team_id"`
	User    User `json:"user"`
	AddedBy int  `json:"added_by"`
}

// TeamNotification is the payload of team_notification.
type TeamNotification struct {
	Type      string `json:"type"`
	TeamID    int    `json:"team_id"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// DirectChannel is the payload of dm_channel.
type DirectChannel struct {
	Channel      Channel              `json:"channel"`
	Participants DirectMessageChannel `json:"participants"`
	Created      bool                 `json:"created"`
}

// ChannelMessages is the payload of channel_messages.
type ChannelMessages struct {
	ChannelID int       `json:"channel_id"`
	Messages  []Message `json:"messages"`
}

// TeamMembers is the payload of team_members.
type TeamMembers struct {
	TeamID  int    `json:"team_id"`
	Members []User `json:"members"`
}

// TeamChannels is the payload of team_channels.
type TeamChannels struct {
	TeamID   int       `json:"team_id"`
	Channels []Channel `json:"channels"`
}

// UserPresences is the payload of user_presences: a full team snapshot.
type UserPresences struct {
	TeamID    int        `json:"team_id"`
	Presences []Presence `json:"presences"`
}

// InteractedUsers is the payload of interacted_users.
type InteractedUsers struct {
	Users []User `json:"users"`
}
