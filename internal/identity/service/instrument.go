package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

func (s *AuthService) initInstruments() error {
	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)
	var err error
	s.operations, err = meter.Int64Counter("auth.operations",
		metric.WithDescription("Auth operations by outcome"),
		metric.WithUnit("{operation}"))
	if err != nil {
		return fmt.Errorf("auth service: counter: %w", err)
	}
	s.duration, err = meter.Float64Histogram("auth.operation.duration",
		metric.WithDescription("Auth operation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("auth service: histogram: %w", err)
	}
	return nil
}

// run executes one operation under a span, the store timeout, and panic recovery,
// and folds its error into a Result.
func run[T any](ctx context.Context, s *AuthService, op, successMessage string, fn func(ctx context.Context) (T, error)) Result[T] {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "identity."+op)
	defer span.End()

	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	data, err := call(ctx, fn)
	var res Result[T]
	var f *Failure
	switch {
	case err == nil:
		res = Result[T]{Success: true, Message: successMessage, Data: data}
	case errors.As(err, &f):
		res = Result[T]{Kind: f.Kind, Message: f.Message}
	default:
		res = Result[T]{Kind: KindInternalError, Message: defaultMessages[KindInternalError], Errors: []string{err.Error()}}
		s.logger.ErrorContext(ctx, "operation failed", "op", op, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindInternalError))
	}

	attrs := metric.WithAttributes(
		attribute.String("auth.operation", op),
		attribute.String("auth.outcome", outcome(res.Kind)),
	)
	span.SetAttributes(attribute.String("auth.outcome", outcome(res.Kind)))
	// The store timeout must not drop the measurement.
	mctx := context.WithoutCancel(ctx)
	s.operations.Add(mctx, 1, attrs)
	s.duration.Record(mctx, time.Since(start).Seconds(), attrs)
	return res
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			data, err = zero, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
