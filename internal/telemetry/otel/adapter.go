package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"credential-session-service/backend/internal/telemetry"
)

// instrumentationName scopes the service's tracer, meter, and event logger.
const instrumentationName = "credential-session-service/identity"

// recordEmitter is the part of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger wraps an existing OTel logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, telemetry.AuthEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the auth event to an OTel log record. Failures get WARN severity.
func (e *otelEmitter) Emit(ctx context.Context, event telemetry.AuthEvent) error {
	rec := otellog.Record{}
	ts := event.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	rec.SetTimestamp(ts.UTC())
	rec.SetEventName("auth." + string(event.Type))
	rec.SetBody(otellog.StringValue(string(event.Type)))
	if event.Outcome == "" || event.Outcome == "ok" {
		rec.SetSeverity(otellog.SeverityInfo)
	} else {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	rec.AddAttributes(otellog.String("event_type", string(event.Type)))
	if event.Outcome != "" {
		rec.AddAttributes(otellog.String("outcome", event.Outcome))
	}
	if event.AccountID != "" {
		rec.AddAttributes(otellog.String("account_id", event.AccountID))
	}
	if event.Username != "" {
		rec.AddAttributes(otellog.String("username", event.Username))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.Count != 0 {
		rec.AddAttributes(otellog.Int64("count", event.Count))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
