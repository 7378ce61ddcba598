// Package migrations embeds the goose schema migrations for each driver.
package migrations

import "embed"

//go:embed sqlite3/*.sql
var SQLite embed.FS

//go:embed postgres/*.sql
var Postgres embed.FS
