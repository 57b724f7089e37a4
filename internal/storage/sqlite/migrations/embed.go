package migrations

import "embed"

// FS contains embedded SQLite migrations for the task form store.
//
//go:embed *.sql
var FS embed.FS
