// Package migrations embeds the goose SQL migrations for the vault's
// metadata index.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
