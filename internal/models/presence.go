package models

import "time"

// Presence is the online state of a user within a team.
type Presence struct {
	UserID   int       `db:"user_id" json:"user_id"`
	Username string    `db:"username" json:"username"`
	TeamID   int       `db:"team_id" json:"team_id"`
	Online   bool      `db:"online" json:"online"`
	LastSeen time.Time `db:"last_seen" json:"last_seen"`
}
