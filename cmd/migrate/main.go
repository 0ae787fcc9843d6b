// migrate runs DB migrations from embedded SQL; use with go run ./cmd/migrate -direction up|down.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"credential-session-service/backend/internal/app"
	"credential-session-service/backend/internal/config"
	"credential-session-service/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := app.Logger(cfg)

	if err := run(cfg, *direction, logger); err != nil {
		logger.Error("migrate: failed", "direction", *direction, "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
}

// run migrates cfg's database. Being at the target version already is not an error.
func run(cfg *config.Config, direction string, logger *slog.Logger) error {
	logger.Info("migrate: starting", "direction", direction, "driver", cfg.DatabaseDriver)
	if err := migrate.Run(cfg.DatabaseDriver, cfg.DatabaseURL, direction); err != nil {
		return err
	}
	logger.Info("migrate: done", "direction", direction, "driver", cfg.DatabaseDriver)
	return nil
}
