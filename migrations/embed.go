// Package migrations embeds the Postgres schema applied at boot and in integration tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
