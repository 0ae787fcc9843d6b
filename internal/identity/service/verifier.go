package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	accountdomain "credential-session-service/backend/internal/account/domain"
	"credential-session-service/backend/internal/security"
)

// AccountFinder looks accounts up by exact username.
type AccountFinder interface {
	GetByUsername(ctx context.Context, username string) (*accountdomain.Account, error)
}

// Verifier checks a username and password against the account store. Unknown
// usernames, inactive accounts, and wrong passwords are indistinguishable to the
// caller and take roughly the same time.
type Verifier struct {
	hasher    *security.Hasher
	logger    *slog.Logger
	dummyHash string
}

// NewVerifier returns a Verifier using hasher. A throwaway hash at the same cost is
// computed once so lookups of unknown users still pay for a bcrypt comparison.
func NewVerifier(hasher *security.Hasher, logger *slog.Logger) (*Verifier, error) {
	if hasher == nil {
		return nil, errors.New("verifier: hasher is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dummy, err := hasher.Hash([]byte("verifier-timing-equalizer"))
	if err != nil {
		return nil, fmt.Errorf("verifier: %w", err)
	}
	return &Verifier{hasher: hasher, logger: logger, dummyHash: dummy}, nil
}

// Verify returns the account for username if password matches and the account is active.
// Any credential problem yields a KindInvalidCredentials *Failure; store errors are returned wrapped.
func (v *Verifier) Verify(ctx context.Context, accounts AccountFinder, username, password string) (*accountdomain.Account, error) {
	var acct *accountdomain.Account
	if username != "" {
		var err error
		acct, err = accounts.GetByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("verify %q: %w", username, err)
		}
	}

	hash := v.dummyHash
	if acct != nil {
		hash = acct.PasswordHash
	}
	cmpErr := v.hasher.Compare(hash, []byte(password))

	var reason string
	switch {
	case acct == nil:
		reason = "unknown_user"
	case cmpErr != nil && !errors.Is(cmpErr, security.ErrPasswordMismatch):
		// Malformed stored hash: the account cannot log in, but this is an operator problem.
		v.logger.ErrorContext(ctx, "stored password hash is unusable", "username", username, "account_id", acct.ID, "error", cmpErr)
		reason = "bad_hash"
	case cmpErr != nil:
		reason = "wrong_password"
	case !acct.Active:
		reason = "inactive"
	}
	if reason != "" {
		v.logger.WarnContext(ctx, "credential verification failed", "username", username, "reason", reason)
		return nil, fail(KindInvalidCredentials)
	}

	v.logger.InfoContext(ctx, "credential verified", "username", username, "account_id", acct.ID)
	return acct, nil
}
