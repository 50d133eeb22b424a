// Package merkle builds content-addressed hash trees over a source tree and
// diffs them against a persisted snapshot.
//
// # Building
//
// A Builder consumes a Source (a directory on disk or in-memory pairs),
// drops ignored and oversized files, hashes the rest with a bounded worker
// pool and aggregates directory hashes bottom-up:
//
//	b := merkle.NewBuilder(
//	    merkle.WithIgnore(matcher),
//	    merkle.WithMaxFileSize(10<<20),
//	    merkle.WithWorkers(8),
//	)
//	tree, err := b.Build(ctx, merkle.NewDirSource("/path/to/project"))
//
// A directory hash is SHA-256 over name || 0x00 || childHash for every child
// sorted by name, so the root hash is independent of enumeration order.
//
// Unreadable files, unreadable directories and symlink cycles are recorded
// in Tree.Warnings and skipped.
//
// # Diffing
//
//	changes := merkle.Diff(prevSnapshot, tree)
//
// Equal root hashes return all-unchanged immediately. Directories whose
// hash matches the snapshot's Directories map are pruned. A nil snapshot
// reports every file as added.
package merkle
