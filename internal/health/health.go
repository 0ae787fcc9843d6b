// Package health reports readiness through the standard gRPC health service.
package health

import (
	"context"
	"log/slog"
	"time"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger checks that a dependency answers (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker pings the database and mirrors the result into a gRPC health server.
// The overall service ("") starts NOT_SERVING until the first successful check.
type Checker struct {
	pinger  Pinger
	server  *grpchealth.Server
	logger  *slog.Logger
	timeout time.Duration
}

// NewChecker returns a Checker. A nil pinger makes every check succeed.
func NewChecker(pinger Pinger, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := grpchealth.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Checker{pinger: pinger, server: srv, logger: logger, timeout: 2 * time.Second}
}

// Server returns the health server to register with gRPC.
func (c *Checker) Server() *grpchealth.Server { return c.server }

// Check pings once and updates the serving status. Ping failures are reported as
// NOT_SERVING, never as errors.
func (c *Checker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if c.pinger != nil {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.pinger.PingContext(pctx)
		cancel()
		if err != nil {
			c.logger.WarnContext(ctx, "health: database ping failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	c.server.SetServingStatus("", status)
	return status
}

// Run checks every interval until ctx is done, then marks the service NOT_SERVING.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}
