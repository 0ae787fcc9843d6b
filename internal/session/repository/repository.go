package repository

import (
	"context"
	"errors"
	"time"

	"credential-session-service/backend/internal/session/domain"
)

// ErrNotUsable is returned by Replace when the session was revoked or removed after it was read.
var ErrNotUsable = errors.New("session: not usable")

// Lookup classifies the outcome of FindByToken. Only LookupFound is usable;
// callers use the others for logging and must treat them alike.
type Lookup int

const (
	LookupNotFound Lookup = iota
	LookupFound
	LookupExpired
	LookupRevoked
)

func (l Lookup) String() string {
	switch l {
	case LookupFound:
		return "found"
	case LookupExpired:
		return "expired"
	case LookupRevoked:
		return "revoked"
	default:
		return "not_found"
	}
}

// Repository defines persistence for sessions. Raw renewal tokens go in; only their
// hashes are stored or queried.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// FindByToken returns the session for token with its lookup state at now. The session is
	// nil only for LookupNotFound. Expired rows are reported as expired whether or not they were purged.
	FindByToken(ctx context.Context, token string, now time.Time) (*domain.Session, Lookup, error)
	// Revoke marks the session for token revoked. Revoking a missing or already revoked session is a no-op.
	Revoke(ctx context.Context, token string, now time.Time) error
	// Replace revokes the session oldID and links it to next, then persists next.
	Replace(ctx context.Context, oldID string, next *domain.Session, now time.Time) error
	RevokeAllByAccount(ctx context.Context, accountID string, now time.Time) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
