package migrations

import "embed"

// FS contains embedded SQLite migrations for guest storage.
//
//go:embed *.sql
var FS embed.FS
