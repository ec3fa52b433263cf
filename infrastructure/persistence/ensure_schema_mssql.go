package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureSchemaMSSQL creates the scheduling tables on SQL Server/Azure SQL if
// they are missing. Safe to call at startup. JSON columns are NVARCHAR(MAX);
// the repositories treat their content the same way as the Postgres JSONB
// columns.
func EnsureSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	createIfMissing := func(table, ddl string) error {
		q := fmt.Sprintf(`IF OBJECT_ID('dbo.%s', 'U') IS NULL BEGIN %s END`, table, ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure table dbo.%s: %w", table, err)
		}
		return nil
	}

	if err := createIfMissing("scheduled_posts",
		`CREATE TABLE dbo.[scheduled_posts] (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			account_id NVARCHAR(255) NOT NULL,
			text NVARCHAR(MAX) NOT NULL,
			embeds NVARCHAR(MAX) NOT NULL DEFAULT '[]',
			sensitivity NVARCHAR(64) NOT NULL DEFAULT '',
			scheduled_at DATETIMEOFFSET NOT NULL,
			post_now BIT NOT NULL DEFAULT 0,
			posted BIT NOT NULL DEFAULT 0,
			uri NVARCHAR(512) NULL,
			cid NVARCHAR(255) NULL,
			is_thread_root BIT NOT NULL DEFAULT 0,
			is_child_post BIT NOT NULL DEFAULT 0,
			root_id BIGINT NULL REFERENCES dbo.[scheduled_posts](id),
			parent_id BIGINT NULL REFERENCES dbo.[scheduled_posts](id),
			thread_order INT NOT NULL DEFAULT 0,
			cadences NVARCHAR(MAX) NOT NULL DEFAULT '[]',
			reposts_left INT NOT NULL DEFAULT 0,
			created_at DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET(),
			updated_at DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET()
		)`); err != nil {
		return err
	}
	if err := createIfMissing("scheduled_reposts",
		`CREATE TABLE dbo.[scheduled_reposts] (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			post_id BIGINT NOT NULL REFERENCES dbo.[scheduled_posts](id) ON DELETE CASCADE,
			account_id NVARCHAR(255) NOT NULL,
			uri NVARCHAR(512) NOT NULL,
			cid NVARCHAR(255) NOT NULL,
			group_id NVARCHAR(255) NULL,
			scheduled_at DATETIMEOFFSET NOT NULL,
			created_at DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET()
		)`); err != nil {
		return err
	}
	if err := createIfMissing("account_credentials",
		`CREATE TABLE dbo.[account_credentials] (
			account_id NVARCHAR(255) PRIMARY KEY,
			identifier NVARCHAR(255) NOT NULL,
			app_secret NVARCHAR(255) NOT NULL
		)`); err != nil {
		return err
	}
	if err := createIfMissing("account_violations",
		`CREATE TABLE dbo.[account_violations] (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			account_id NVARCHAR(255) NOT NULL,
			status NVARCHAR(64) NOT NULL,
			detail NVARCHAR(MAX) NULL,
			created_at DATETIMEOFFSET NOT NULL DEFAULT SYSDATETIMEOFFSET(),
			cleared_at DATETIMEOFFSET NULL
		)`); err != nil {
		return err
	}

	indexes := []struct{ name, ddl string }{
		{"idx_scheduled_posts_due",
			`CREATE INDEX idx_scheduled_posts_due ON dbo.[scheduled_posts] (scheduled_at) WHERE posted = 0`},
		{"idx_scheduled_reposts_due",
			`CREATE INDEX idx_scheduled_reposts_due ON dbo.[scheduled_reposts] (scheduled_at)`},
		{"idx_account_violations_active",
			`CREATE INDEX idx_account_violations_active ON dbo.[account_violations] (account_id) WHERE cleared_at IS NULL`},
	}
	for _, idx := range indexes {
		q := fmt.Sprintf(`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = '%s') BEGIN %s END`, idx.name, idx.ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index %s: %w", idx.name, err)
		}
	}
	return nil
}
