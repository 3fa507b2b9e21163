package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"chat-gateway/internal/config"
)

// Connect opens the Postgres pool and applies migrations.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.Info("database migrations applied", zap.Int("count", len(migrations)))
	}
	return db, nil
}

// created_at defaults to clock_timestamp() so rows inserted within one
// transaction still get distinct, increasing timestamps.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS dm_rooms (
            id BIGSERIAL PRIMARY KEY,
            participant_a BIGINT NOT NULL,
            participant_b BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            UNIQUE(participant_a, participant_b)
        );`,
	`CREATE TABLE IF NOT EXISTS group_rooms (
            id BIGSERIAL PRIMARY KEY,
            team_id BIGINT NOT NULL,
            scope TEXT NOT NULL DEFAULT 'team',
            room_kind TEXT NOT NULL DEFAULT 'group' CHECK (room_kind IN ('group', 'archive')),
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE TABLE IF NOT EXISTS team_members (
            team_id BIGINT NOT NULL,
            user_id BIGINT NOT NULL,
            PRIMARY KEY(team_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS team_members_user_idx ON team_members (user_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            room_type TEXT NOT NULL,
            room_id BIGINT NOT NULL,
            sender_id BIGINT NOT NULL,
            kind TEXT NOT NULL,
            body TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_room_order_idx ON messages (room_type, room_id, created_at DESC, id DESC);`,
	`CREATE TABLE IF NOT EXISTS archive_items (
            id BIGSERIAL PRIMARY KEY,
            room_type TEXT NOT NULL,
            room_id BIGINT NOT NULL,
            uploader_id BIGINT NOT NULL,
            file_url TEXT NOT NULL,
            file_name TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE TABLE IF NOT EXISTS archive_tags (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            archive_item_id BIGINT NOT NULL REFERENCES archive_items(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            UNIQUE(name, archive_item_id)
        );`,
	`CREATE INDEX IF NOT EXISTS archive_tags_name_prefix_idx ON archive_tags (name text_pattern_ops);`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
