// Package migrations embeds the Postgres schema migrations for the term store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
