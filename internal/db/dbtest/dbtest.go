// Package dbtest provides migrated throwaway databases for repository tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"credential-session-service/backend/internal/db"
	"credential-session-service/backend/internal/db/migrate"
)

// NewSQLite returns a migrated SQLite database in t's temp dir, closed on cleanup.
// A file is used instead of :memory: so the pool can hold more than one connection.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Open(db.SQLite.String(), path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := migrate.Apply(conn, db.SQLite, "up"); err != nil {
		t.Fatalf("migrate.Apply: %v", err)
	}
	return conn
}

// MustExec runs a statement and fails t on error. query uses ? placeholders.
func MustExec(t testing.TB, conn *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := conn.Exec(query, args...); err != nil {
		t.Fatalf("exec %s: %v", query, err)
	}
}
