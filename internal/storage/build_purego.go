//go:build !sqlite_vec

package storage

// The default build uses the pure Go SQLite driver; no C compiler is needed
// and cross compilation works.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver in use
	DriverName = "sqlite"

	// BuildMode describes the storage build configuration
	BuildMode = "purego"
)
