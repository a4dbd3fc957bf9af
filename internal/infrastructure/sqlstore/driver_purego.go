//go:build !sqlite_cgo

package sqlstore

// Pure Go SQLite; no C toolchain needed. This is the default build.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// SQLiteDriverName is the database/sql driver registered for SQLite.
	SQLiteDriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
