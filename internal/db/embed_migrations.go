package db

import "embed"

// MigrationFS embeds the SQL migrations shared by Postgres and SQLite.
// Used by the migrate runner (cmd/migrate and repository tests).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
