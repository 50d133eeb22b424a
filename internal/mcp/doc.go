// Package mcp implements the Model Context Protocol (MCP) server for codeindex.
//
// The server exposes two tools to AI coding assistants:
//   - index_codebase: incrementally index a directory into a collection
//   - get_status: report what a collection holds and whether a run is active
//
// Reversing obfuscated paths is only possible through the local CLI. The
// mapping file never travels over MCP, and when obfuscation is enabled the
// tool responses omit warnings and error text that could name files.
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio. Stdout carries protocol messages only;
// logs go to stderr.
//
//	codeindex serve
//
// # Tool: index_codebase
//
//	Request:
//	{
//	  "name": "index_codebase",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "collection": "my-project",
//	    "force_reindex": false
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "collection": "my-project",
//	  "build_id": "7d0c3c0e-...",
//	  "full_rebuild": false,
//	  "no_changes": false,
//	  "changes": {"added": 2, "modified": 1, "deleted": 0, "unchanged": 240},
//	  "files_chunked": 3,
//	  "chunks_emitted": 17,
//	  "batches": 1,
//	  "duration_ms": 84
//	}
//
// When collection is omitted it is derived from a digest of the absolute path.
//
// # Tool: get_status
//
//	Request:
//	{
//	  "name": "get_status",
//	  "arguments": {"collection": "my-project"}
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "collection": "my-project",
//	  "indexing": false,
//	  "obfuscated": true,
//	  "snapshot": {"build_id": "...", "built_at": "...", "root_hash": "...", "files": 243},
//	  "statistics": {"files_count": 243, "chunks_count": 1210, "embeddings_count": 0, "index_size_mb": "3.10"},
//	  "health": {"database_accessible": true, "embeddings_available": false}
//	}
//
// # Error Handling
//
// Handler errors are *MCPError values:
//   - -32602: invalid params (missing or relative path, bad collection name)
//   - -32603: internal error (the run failed)
//   - -32001: path does not exist
//   - -32002: another index run is in progress
//
// A collection that was never indexed is not an error; get_status answers
// with "indexed": false.
package mcp
