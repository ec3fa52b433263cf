package repository

import (
	"context"

	"skypress/domain/model"
)

// IAccount defines credential lookup and violation bookkeeping.
type IAccount interface {
	GetCredentials(ctx context.Context, accountID string) (*model.Credentials, error)
	// RecordViolation stores a durable violation flag for the account. Writing
	// the same status twice is a no-op, so a failure observed by several tasks
	// in one batch is recorded once.
	RecordViolation(ctx context.Context, accountID string, status model.AccountStatus, detail string) error
	HasViolation(ctx context.Context, accountID string) (bool, error)
}
