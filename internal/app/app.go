// Package app wires configuration into the components shared by the commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"credential-session-service/backend/internal/config"
	"credential-session-service/backend/internal/db"
	identityrepo "credential-session-service/backend/internal/identity/repository"
	"credential-session-service/backend/internal/identity/service"
	"credential-session-service/backend/internal/logging"
	"credential-session-service/backend/internal/security"
	"credential-session-service/backend/internal/telemetry"
)

// connectDelay is the base backoff between database connection attempts.
var connectDelay = time.Second

// Logger returns the structured logger described by cfg.
func Logger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
}

// OpenDB opens the configured database, retrying up to DB_CONNECT_ATTEMPTS times with
// exponential backoff. Only startup retries; the auth core never does.
func OpenDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, db.Dialect, error) {
	dialect, err := db.DialectFor(cfg.DatabaseDriver)
	if err != nil {
		return nil, 0, err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, 0, errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	attempts := cfg.DBConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var conn *sql.DB
	err = retry.Do(
		func() error {
			c, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(connectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WarnContext(ctx, "database not ready", "attempt", n+1, "max_attempts", attempts, "error", err)
		}),
	)
	if err != nil {
		return nil, 0, err
	}
	return conn, dialect, nil
}

// TokenProvider builds the access token minter from cfg. JWT_PRIVATE_KEY and
// JWT_PUBLIC_KEY hold either PEM text or a path to a PEM file.
func TokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	var privatePEM, publicPEM string
	if !cfg.UsesHMAC() {
		var err error
		if privatePEM, err = keyMaterial(cfg.JWTPrivateKey); err != nil {
			return nil, fmt.Errorf("JWT_PRIVATE_KEY: %w", err)
		}
		if publicPEM, err = keyMaterial(cfg.JWTPublicKey); err != nil {
			return nil, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
		}
	}
	key, err := security.LoadSigningKey(cfg.JWTSigningAlg, cfg.JWTSecret, privatePEM, publicPEM)
	if err != nil {
		return nil, err
	}
	return security.NewTokenProvider(key, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(),
		security.WithClockSkew(cfg.ClockSkew()))
}

func keyMaterial(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("not set")
	}
	if strings.Contains(v, "-----BEGIN") {
		return v, nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AuthService builds the session manager over conn with the settings in cfg.
func AuthService(cfg *config.Config, conn *sql.DB, dialect db.Dialect, logger *slog.Logger, events telemetry.EventEmitter) (*service.AuthService, error) {
	tokens, err := TokenProvider(cfg)
	if err != nil {
		return nil, err
	}
	uow, err := identityrepo.NewSQLUnitOfWork(conn, dialect)
	if err != nil {
		return nil, err
	}
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithRotation(cfg.RotateRefreshTokens),
		service.WithStoreTimeout(cfg.StoreTimeoutDuration()),
		service.WithRefreshTokenBytes(cfg.RefreshTokenBytes),
	}
	if events != nil {
		opts = append(opts, service.WithEventEmitter(events))
	}
	return service.NewAuthService(uow, security.NewHasher(cfg.BcryptCost), tokens, cfg.RefreshTTL(), opts...)
}
