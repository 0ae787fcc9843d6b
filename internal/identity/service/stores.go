package service

import (
	"context"
	"time"

	accountdomain "credential-session-service/backend/internal/account/domain"
	sessiondomain "credential-session-service/backend/internal/session/domain"
	sessionrepo "credential-session-service/backend/internal/session/repository"
)

// AccountStore is the account repository surface the auth service needs.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByUsername(ctx context.Context, username string) (*accountdomain.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	ListRolesForAccount(ctx context.Context, accountID string) ([]*accountdomain.Role, error)
	GetRoleByID(ctx context.Context, id string) (*accountdomain.Role, error)
	ListRoles(ctx context.Context) ([]*accountdomain.Role, error)
}

// SessionStore is the session store adapter surface the auth service needs.
type SessionStore interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	FindByToken(ctx context.Context, token string, now time.Time) (*sessiondomain.Session, sessionrepo.Lookup, error)
	Revoke(ctx context.Context, token string, now time.Time) error
	Replace(ctx context.Context, oldID string, next *sessiondomain.Session, now time.Time) error
	RevokeAllByAccount(ctx context.Context, accountID string, now time.Time) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stores are repositories bound to one transaction.
type Stores struct {
	Accounts AccountStore
	Sessions SessionStore
}

// UnitOfWork runs fn in a single transaction. It commits when fn returns nil and
// rolls back when fn returns an error or panics.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
