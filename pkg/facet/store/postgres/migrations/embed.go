// Package migrations embeds the SQL migration files for the PostgreSQL
// store, applied through golang-migrate.
package migrations

import "embed"

// FS holds the migration files.
//
//go:embed *.sql
var FS embed.FS
