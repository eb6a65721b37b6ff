package db

import "embed"

// MigrationFS holds the schema migrations for users, workspaces, and
// memberships, applied by the runner in internal/db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
