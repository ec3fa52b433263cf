package persistence

import (
	"context"
	"database/sql"
	"time"

	"skypress/domain/model"
)

// AccountRepositoryMSSQL implements credential lookup and violation
// bookkeeping for SQL Server/Azure SQL using database/sql.
type AccountRepositoryMSSQL struct{ db *sql.DB }

func NewAccountRepositoryMSSQL(db *sql.DB) *AccountRepositoryMSSQL {
	return &AccountRepositoryMSSQL{db: db}
}

func (r *AccountRepositoryMSSQL) GetCredentials(ctx context.Context, accountID string) (*model.Credentials, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT account_id, identifier, app_secret FROM dbo.[account_credentials] WHERE account_id = @p1`,
		accountID)
	c := &model.Credentials{}
	if err := row.Scan(&c.AccountID, &c.Identifier, &c.AppSecret); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// RecordViolation writes a durable violation flag. An active flag with the
// same status is left untouched so repeated failures within a batch are
// recorded once.
func (r *AccountRepositoryMSSQL) RecordViolation(ctx context.Context, accountID string, status model.AccountStatus, detail string) error {
	q := `INSERT INTO dbo.[account_violations] (account_id, status, detail, created_at)
		SELECT @p1, @p2, @p3, @p4
		WHERE NOT EXISTS (
			SELECT 1 FROM dbo.[account_violations]
			WHERE account_id = @p1 AND status = @p2 AND cleared_at IS NULL
		)`
	var d *string
	if detail != "" {
		d = &detail
	}
	_, err := r.db.ExecContext(ctx, q, accountID, string(status), d, time.Now().UTC())
	return err
}

func (r *AccountRepositoryMSSQL) HasViolation(ctx context.Context, accountID string) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP (1) 1 FROM dbo.[account_violations] WHERE account_id = @p1 AND cleared_at IS NULL`,
		accountID)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
