package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureSchema creates the scheduling tables if they are missing. Safe to call
// at startup.
func EnsureSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ddls := []string{
		`CREATE TABLE IF NOT EXISTS scheduled_posts (
			id BIGSERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			text TEXT NOT NULL,
			embeds JSONB NOT NULL DEFAULT '[]',
			sensitivity TEXT NOT NULL DEFAULT '',
			scheduled_at TIMESTAMPTZ NOT NULL,
			post_now BOOLEAN NOT NULL DEFAULT FALSE,
			posted BOOLEAN NOT NULL DEFAULT FALSE,
			uri TEXT,
			cid TEXT,
			is_thread_root BOOLEAN NOT NULL DEFAULT FALSE,
			is_child_post BOOLEAN NOT NULL DEFAULT FALSE,
			root_id BIGINT REFERENCES scheduled_posts(id),
			parent_id BIGINT REFERENCES scheduled_posts(id),
			thread_order INT NOT NULL DEFAULT 0,
			cadences JSONB NOT NULL DEFAULT '[]',
			reposts_left INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_reposts (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL REFERENCES scheduled_posts(id) ON DELETE CASCADE,
			account_id TEXT NOT NULL,
			uri TEXT NOT NULL,
			cid TEXT NOT NULL,
			group_id TEXT,
			scheduled_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS account_credentials (
			account_id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL,
			app_secret TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS account_violations (
			id BIGSERIAL PRIMARY KEY,
			account_id TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			cleared_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_posts_due ON scheduled_posts (scheduled_at) WHERE NOT posted`,
		`CREATE INDEX IF NOT EXISTS idx_scheduled_reposts_due ON scheduled_reposts (scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_account_violations_active ON account_violations (account_id) WHERE cleared_at IS NULL`,
	}

	for _, ddl := range ddls {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensuring schema failed: %w", err)
		}
	}
	return nil
}
