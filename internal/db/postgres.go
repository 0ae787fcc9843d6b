package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open opens a database for driver ("postgres" or "sqlite") using dsn and pings it.
// For sqlite, dsn is a file path or ":memory:". Caller must call Close when done.
func Open(driver, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: dsn is required")
	}
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	var conn *sql.DB
	switch d {
	case Postgres:
		conn, err = sql.Open("pgx", dsn)
	case SQLite:
		conn, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil && isMemoryDSN(dsn) {
			// Every connection to :memory: is a separate database.
			conn.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", driver, err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db: ping %s: %w", driver, err)
	}
	return conn, nil
}

var sqlitePragmas = []struct{ name, value string }{
	{"foreign_keys", "foreign_keys(1)"},
	{"busy_timeout", "busy_timeout(5000)"},
}

// sqliteDSN appends the default pragmas the caller has not set itself.
func sqliteDSN(dsn string) string {
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, "_pragma="+p.name) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=" + p.value
	}
	return dsn
}

func isMemoryDSN(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
