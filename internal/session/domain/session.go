package domain

import "time"

// Session is a persisted renewal grant for one account. Only the hash of the
// renewal token is kept; the raw token leaves the service exactly once.
type Session struct {
	ID         string
	AccountID  string
	TokenHash  string // SHA-256 hex of the renewal token
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
	RevokedAt  *time.Time // nil when not revoked
	ReplacedBy string     // id of the session that superseded this one on rotation; empty otherwise
}

// State is where a session is in its lifecycle at a given instant.
type State int

const (
	StateActive State = iota
	StateExpired
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// StateAt reports the session's state at now. Revocation wins over expiry; a session
// is expired from ExpiresAt onwards.
func (s *Session) StateAt(now time.Time) State {
	if s.Revoked {
		return StateRevoked
	}
	if !now.Before(s.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// Usable reports whether the session can still be redeemed at now.
func (s *Session) Usable(now time.Time) bool {
	return s.StateAt(now) == StateActive
}
