// Package telemetry defines the auth event emitted for every session operation.
package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// EventType names what happened to a credential or session.
type EventType string

const (
	EventAuthenticated  EventType = "authenticated"
	EventAuthFailed     EventType = "authentication_failed"
	EventRefreshed      EventType = "refreshed"
	EventRefreshFailed  EventType = "refresh_failed"
	EventRevoked        EventType = "revoked"
	EventRevokedAll     EventType = "revoked_all"
	EventRegistered     EventType = "registered"
	EventSessionsPurged EventType = "sessions_purged"
)

// AuthEvent is a single auth outcome. It never carries passwords or raw tokens.
type AuthEvent struct {
	Type      EventType
	AccountID string
	Username  string
	SessionID string
	// Outcome is the failure kind, or "ok".
	Outcome string
	Count   int64 // rows affected, for bulk operations
	Time    time.Time
}

// EventEmitter emits auth events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event AuthEvent) error
}

// Emit sends event through emitter on the caller's goroutine and logs any error.
// A nil emitter is a no-op.
func Emit(ctx context.Context, emitter EventEmitter, logger *slog.Logger, event AuthEvent) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "telemetry: emit failed", "event", string(event.Type), "error", err)
	}
}
