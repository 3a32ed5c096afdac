// Package migrations embeds the SQL migration files applied to the
// PostgreSQL backend by golang-migrate (see ../migrate.go).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
