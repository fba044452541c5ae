// Package dbmigrations exposes embedded SQL migrations for swapgate binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into swapgate binaries.
//
//go:embed *.sql
var Files embed.FS
