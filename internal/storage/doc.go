// Package storage persists index output in SQLite.
//
// SQLiteStorage implements the indexer's Sink: Reset clears a collection,
// Remove deletes the chunks of the given source paths, and Emit upserts a
// batch of chunks in a single transaction. EmbeddingSink wraps it and stores
// a vector per chunk, computed before the transaction opens.
//
// # Schema
//
//   - collections: one row per indexed codebase, with a cached chunk count
//   - chunks: chunk content and metadata, unique per (collection, key)
//   - embeddings: one vector per chunk, deleted with it
//
// A chunk key is the xxh3-128 hash of source path, byte range and content
// digest (see KeyOf). Paths are stored exactly as emitted, so with path
// obfuscation enabled the database never holds a real path.
//
// Schema versions are semantic versions applied in order by
// ApplyMigrations; a database written by a newer binary is refused.
//
// # Drivers
//
// The default build uses modernc.org/sqlite. Building with -tags sqlite_vec
// switches to github.com/mattn/go-sqlite3, which needs cgo. BuildMode and
// DriverName report which one is compiled in.
package storage
