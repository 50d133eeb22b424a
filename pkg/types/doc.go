// Package types provides shared type definitions for the codeindex engine.
//
// These are the values that cross package boundaries: digests, file entries,
// persisted snapshots, change sets, chunks and warnings.
//
// # Digests
//
// Digest is a SHA-256 value that serializes as lowercase hex, so a Snapshot
// marshals to a stable JSON document:
//
//	{
//	  "version": 1,
//	  "rootHash": "9f86d0...",
//	  "builtAt": "2025-01-02T15:04:05Z",
//	  "entries": {"src/main.py": {"hash": "...", "size": 120, "modifiedTime": "..."}},
//	  "directories": {"": "...", "src": "..."}
//	}
//
// # Change sets
//
// ChangeSet partitions the union of the old and new path sets into added,
// modified, deleted and unchanged. Each bucket is sorted.
//
// # Chunks
//
// The chunks for one file, sorted by StartOffset, tile the file exactly:
//
//	chunks[0].StartOffset == 0
//	chunks[i].EndOffset == chunks[i+1].StartOffset
//	chunks[len(chunks)-1].EndOffset == len(content)
package types
