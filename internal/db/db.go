package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(ctx context.Context, dsn string, maxOpenConns int, log *slog.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations applied", "count", len(migrations))
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username VARCHAR(150) NOT NULL UNIQUE,
            email VARCHAR(254) NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS teams (
            id SERIAL PRIMARY KEY,
            name VARCHAR(100) NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS team_members (
            team_id INT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            PRIMARY KEY(team_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS channels (
            id SERIAL PRIMARY KEY,
            team_id INT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
            name VARCHAR(100) NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            is_direct_message BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS channel_members (
            channel_id INT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            PRIMARY KEY(channel_id, user_id)
        );`,
	`CREATE TABLE IF NOT EXISTS direct_message_channels (
            channel_id INT NOT NULL UNIQUE REFERENCES channels(id) ON DELETE CASCADE,
            team_id INT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
            user1_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            user2_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            UNIQUE(team_id, user1_id, user2_id),
            CHECK (user1_id < user2_id)
        );`,
	`CREATE TABLE IF NOT EXISTS file_attachments (
            id SERIAL PRIMARY KEY,
            file_path VARCHAR(255) NOT NULL,
            original_filename VARCHAR(255) NOT NULL,
            content_type VARCHAR(100) NOT NULL,
            size BIGINT NOT NULL,
            uploaded_by INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            channel_id INT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            reply_to_id INT REFERENCES messages(id) ON DELETE SET NULL,
            reactions JSONB,
            link_preview JSONB,
            is_forwarded BOOLEAN NOT NULL DEFAULT FALSE,
            is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
            is_edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            edit_history JSONB,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_channel_created_idx ON messages (channel_id, created_at);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS messages_one_pin_per_channel ON messages (channel_id) WHERE is_pinned;`,
	`CREATE TABLE IF NOT EXISTS message_files (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            file_id INT NOT NULL REFERENCES file_attachments(id) ON DELETE CASCADE,
            PRIMARY KEY(message_id, file_id)
        );`,
	`CREATE TABLE IF NOT EXISTS user_presences (
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            team_id INT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
            online BOOLEAN NOT NULL DEFAULT FALSE,
            last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(user_id, team_id)
        );`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
