package db

import "embed"

// MigrationFS embeds the SQL migration files from internal/db/migrations.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
