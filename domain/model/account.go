package model

import "time"

// AccountStatus is the enumerated outcome of an authentication or publish
// attempt against the remote platform.
type AccountStatus string

const (
	StatusOk                 AccountStatus = "ok"
	StatusSuspended          AccountStatus = "suspended"
	StatusDeactivated        AccountStatus = "deactivated"
	StatusTakenDown          AccountStatus = "taken_down"
	StatusInvalidCredentials AccountStatus = "invalid_credentials"
	StatusPlatformOutage     AccountStatus = "platform_outage"
	StatusMediaTooLarge      AccountStatus = "media_too_large"
	StatusTOSViolation       AccountStatus = "tos_violation"
	StatusUnhandled          AccountStatus = "unhandled"
)

// AccountLevel reports whether the status is an account-level failure that
// should be recorded as a durable violation and never blindly retried.
func (s AccountStatus) AccountLevel() bool {
	switch s {
	case StatusSuspended, StatusDeactivated, StatusTakenDown, StatusInvalidCredentials, StatusTOSViolation:
		return true
	}
	return false
}

// Transient reports whether the failure is worth a dispatcher-level retry.
func (s AccountStatus) Transient() bool {
	return s == StatusPlatformOutage
}

// Credentials are the stored remote login credentials for one account.
type Credentials struct {
	AccountID  string `json:"account_id"`
	Identifier string `json:"identifier"` // handle or email
	AppSecret  string `json:"-"`
}

// Violation is a durable per-account flag that suspends scheduling for the
// account until cleared.
type Violation struct {
	ID        int64         `json:"id"`
	AccountID string        `json:"account_id"`
	Status    AccountStatus `json:"status"`
	Detail    *string       `json:"detail,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	ClearedAt *time.Time    `json:"cleared_at,omitempty"`
}
