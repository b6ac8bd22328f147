//go:build !sqlite_cgo

package storage

// Compiled by default, using the pure Go SQLite driver. No C compiler is
// needed and FTS5 is built in.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
