// Package migrations embeds the SQL schema migrations so every binary
// can bring its database up to date at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
