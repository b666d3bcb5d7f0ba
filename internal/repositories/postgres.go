package repositories

import "github.com/jmoiron/sqlx"

// NewPostgres builds the sqlx-backed gateway.
func NewPostgres(db *sqlx.DB) Set {
	return Set{
		Users:     NewUserRepo(db),
		Teams:     NewTeamRepo(db),
		Channels:  NewChannelRepo(db),
		Messages:  NewMessageRepo(db),
		Presences: NewPresenceRepo(db),
	}
}
