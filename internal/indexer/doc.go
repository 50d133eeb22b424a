// Package indexer runs incremental index builds.
//
// A run moves through a fixed sequence of states:
//
//	idle -> load_snapshot -> build_tree -> diff -> chunk_changed_files
//	     -> obfuscate_if_enabled -> emit_chunks -> persist_snapshot -> done
//
// and any step may end in failed. When the new Merkle root matches the
// previous snapshot the run goes straight from diff to done without touching
// the Sink.
//
// The snapshot is written only after every batch has been emitted, so a
// failed run leaves the previous snapshot in place and the next run sees the
// same changes again. Result.Stale reports that the sink may already hold
// part of the failed run's output.
//
// Only one run may be active per Indexer; a concurrent Index call returns
// ErrIndexingInProgress instead of waiting.
package indexer
