package persistence

import (
	"context"
	"database/sql"
	"time"

	"skypress/domain/model"
)

// AccountRepository implements credential lookup and violation bookkeeping on
// PostgreSQL.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository { return &AccountRepository{db: db} }

func (r *AccountRepository) GetCredentials(ctx context.Context, accountID string) (*model.Credentials, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT account_id, identifier, app_secret FROM account_credentials WHERE account_id = $1`,
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
func (r *AccountRepository) RecordViolation(ctx context.Context, accountID string, status model.AccountStatus, detail string) error {
	q := `INSERT INTO account_violations (account_id, status, detail, created_at)
		SELECT $1, $2, $3, $4
		WHERE NOT EXISTS (
			SELECT 1 FROM account_violations
			WHERE account_id = $1 AND status = $2 AND cleared_at IS NULL
		)`
	var d *string
	if detail != "" {
		d = &detail
	}
	_, err := r.db.ExecContext(ctx, q, accountID, string(status), d, time.Now().UTC())
	return err
}

func (r *AccountRepository) HasViolation(ctx context.Context, accountID string) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM account_violations WHERE account_id = $1 AND cleared_at IS NULL LIMIT 1`,
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
