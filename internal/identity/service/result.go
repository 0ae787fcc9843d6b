package service

import (
	"time"
)

// FailureKind is the stable, machine-readable reason an operation failed.
type FailureKind string

const (
	KindInvalidCredentials      FailureKind = "invalid_credentials"
	KindInvalidOrExpiredSession FailureKind = "invalid_or_expired_session"
	KindAccountInactive         FailureKind = "account_inactive"
	KindInvalidToken            FailureKind = "invalid_token"
	KindInternalError           FailureKind = "internal_error"
	KindInvalidInput            FailureKind = "invalid_input"
	KindAlreadyExists           FailureKind = "already_exists"
	KindNotFound                FailureKind = "not_found"
)

var defaultMessages = map[FailureKind]string{
	KindInvalidCredentials:      "invalid username or password",
	KindInvalidOrExpiredSession: "invalid or expired refresh token",
	KindAccountInactive:         "account is inactive",
	KindInvalidToken:            "invalid or expired access token",
	KindInternalError:           "an internal error occurred",
	KindInvalidInput:            "invalid input",
	KindAlreadyExists:           "already exists",
	KindNotFound:                "not found",
}

// Failure is a business outcome raised inside an operation. Returning one from a
// unit-of-work closure rolls the transaction back and surfaces Kind to the caller.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	if f.Message != "" {
		return string(f.Kind) + ": " + f.Message
	}
	return string(f.Kind)
}

func fail(kind FailureKind) *Failure {
	return &Failure{Kind: kind, Message: defaultMessages[kind]}
}

func failf(kind FailureKind, msg string) *Failure {
	return &Failure{Kind: kind, Message: msg}
}

// Result is returned by every AuthService operation. Only Kind is a stable contract;
// Message is for humans and Errors carries lower-level diagnostics for operators.
type Result[T any] struct {
	Success bool
	Kind    FailureKind // empty on success
	Message string
	Errors  []string
	Data    T
}

// Err returns the failure as an error, or nil on success.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return &Failure{Kind: r.Kind, Message: r.Message}
}

// RoleInfo is a role as shown on a profile.
type RoleInfo struct {
	ID          string
	Name        string
	Description string
	Active      bool
}

// Profile is the public view of an account.
type Profile struct {
	ID        string
	Username  string
	Email     string
	Active    bool
	CreatedAt time.Time
	Roles     []RoleInfo
}

// Tokens is the outcome of Authenticate and Refresh.
type Tokens struct {
	AccessToken     string
	AccessExpiresAt time.Time
	// RefreshToken is the renewal token the caller must present next time. With rotation
	// enabled it differs from the one redeemed.
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
	Profile          Profile
}

// Principal is the identity proven by a valid access token.
type Principal struct {
	AccountID string
	Username  string
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}
