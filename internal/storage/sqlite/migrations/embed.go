package migrations

import "embed"

// FS contains the embedded SQLite schema for rooms and players.
//
//go:embed *.sql
var FS embed.FS
