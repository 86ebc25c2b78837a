// Package migrations embeds the console schema.
package migrations

import "embed"

// PostgresFS holds the ordered PostgreSQL migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// PostgresDir is the directory within PostgresFS where migrations live.
const PostgresDir = "postgres"
