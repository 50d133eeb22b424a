//go:build sqlite_vec

package storage

// Built with -tags sqlite_vec (and CGO_ENABLED=1) the store uses the cgo
// SQLite driver, which is faster for large collections:
//
//	CGO_ENABLED=1 go build -tags sqlite_vec ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver in use
	DriverName = "sqlite3"

	// BuildMode describes the storage build configuration
	BuildMode = "cgo"
)
