// Package migrations embeds the SQL schema for the bonus ledger.
package migrations

import "embed"

// FS holds the ordered migration files.
//
//go:embed *.sql
var FS embed.FS
