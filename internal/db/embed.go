package db

import "embed"

// EmbedMigrations contains the embedded goose migrations for the queue and
// diff task tables.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
