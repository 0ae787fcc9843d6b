// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"credential-session-service/backend/internal/db"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// Run applies migrations in the given direction using the provided driver and DSN.
// direction must be "up" or "down". Returns nil on success; ErrNoChange is swallowed
// (already at latest for up, nothing to undo for down); other errors for DB or I/O failures.
func Run(driver, dsn, direction string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if err := checkDirection(direction); err != nil {
		return err
	}
	d, err := db.DialectFor(driver)
	if err != nil {
		return err
	}

	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL(d, dsn))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	return step(m, direction)
}

// Apply migrates an already-open connection. Unlike Run it leaves conn open, which is
// what in-memory SQLite databases need.
func Apply(conn *sql.DB, dialect db.Dialect, direction string) error {
	if err := checkDirection(direction); err != nil {
		return err
	}
	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	var target database.Driver
	switch dialect {
	case db.SQLite:
		target, err = sqlite.WithInstance(conn, &sqlite.Config{})
	default:
		target, err = postgres.WithInstance(conn, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("migrate target: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dialect.String(), target)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return step(m, direction)
}

func step(m *migrate.Migrate, direction string) error {
	var err error
	if direction == "up" {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func checkDirection(direction string) error {
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	return nil
}

func databaseURL(d db.Dialect, dsn string) string {
	if d == db.SQLite && !strings.HasPrefix(dsn, "sqlite://") {
		return "sqlite://" + dsn
	}
	return dsn
}
