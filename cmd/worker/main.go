// Worker purges expired sessions every PURGE_INTERVAL until SIGINT or SIGTERM.
// GRPC_ADDR is required by config but unused.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credential-session-service/backend/internal/app"
	"credential-session-service/backend/internal/config"
	"credential-session-service/backend/internal/identity/service"
	telemetryotel "credential-session-service/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := app.Logger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName + "-worker",
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, dialect, err := app.OpenDB(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	auth, err := app.AuthService(cfg, conn, dialect, logger, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	interval := cfg.PurgeInterval()
	logger.Info("worker: purging expired sessions", "interval", interval.String())
	purge(ctx, auth, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker: stopped")
			return
		case <-ticker.C:
			purge(ctx, auth, logger)
		}
	}
}

type purger interface {
	PurgeExpired(ctx context.Context) service.Result[int64]
}

// purge runs one sweep. A failed sweep is logged and retried on the next tick.
func purge(ctx context.Context, p purger, logger *slog.Logger) {
	res := p.PurgeExpired(ctx)
	if !res.Success {
		logger.ErrorContext(ctx, "worker: purge failed", "kind", string(res.Kind), "errors", res.Errors)
		return
	}
	logger.InfoContext(ctx, "worker: purge complete", "purged", res.Data)
}
