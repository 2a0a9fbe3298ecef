package db

import "embed"

// MigrationFS embeds the SQL migrations applied by cmd/migrate and the server's
// optional migrate-on-start.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
