package models

import "time"

// Channel belongs to exactly one team. Group channels carry the team roster,
// direct-message channels carry exactly two members.
type Channel struct {
	ID              int       `db:"id" json:"id"`
	TeamID          int       `db:"team_id" json:"team_id"`
	Name            string    `db:"name" json:"name"`
	Description     string    `db:"description" json:"description"`
	IsDirectMessage bool      `db:"is_direct_message" json:"is_direct_message"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// DirectMessageChannel records the participants of a DM channel.
// User1ID is always the smaller id.
type DirectMessageChannel struct {
	ChannelID int `db:"channel_id" json:"channel_id"`
	TeamID    int `db:"team_id" json:"team_id"`
	User1ID   int `db:"user1_id" json:"user1_id"`
	User2ID   int `db:"user2_id" json:"user2_id"`
}

// ChannelType reports "direct" or "group".
func (c Channel) ChannelType() string {
	if c.IsDirectMessage {
		return "direct"
	}
	return "group"
}
