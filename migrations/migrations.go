// Package migrations embeds the PostgreSQL schema for the pgx driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
