package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codeindex/internal/engine"
	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/snapshot"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodePathNotFound       = -32001 // Specified path does not exist
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
)

// maxReportedWarnings caps the warnings listed in an index response
const maxReportedWarnings = 5

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, pathError(err)
	}

	req := engine.IndexRequest{
		Root:       path,
		Collection: getStringDefault(args, "collection", ""),
		Full:       getBoolDefault(args, "force_reindex", false),
	}

	res, err := s.engine.Index(ctx, req)
	switch {
	case errors.Is(err, indexer.ErrIndexingInProgress):
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	case errors.Is(err, snapshot.ErrInvalidCollection):
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid collection name", map[string]interface{}{
			"param":  "collection",
			"reason": err.Error(),
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", s.failureData(res, err))
	}

	response := map[string]interface{}{
		"indexed":        true,
		"collection":     res.Collection,
		"build_id":       res.BuildID,
		"full_rebuild":   res.FullRebuild,
		"no_changes":     res.NoChanges,
		"files_chunked":  res.FilesChunked,
		"chunks_emitted": res.ChunksEmitted,
		"batches":        res.Batches,
		"duration_ms":    res.Duration.Milliseconds(),
	}
	if res.Changes != nil {
		response["changes"] = map[string]interface{}{
			"added":     len(res.Changes.Added),
			"modified":  len(res.Changes.Modified),
			"deleted":   len(res.Changes.Deleted),
			"unchanged": len(res.Changes.Unchanged),
		}
	}

	// Warnings carry file paths, which must not leave the process when
	// obfuscation is on
	if n := len(res.Warnings); n > 0 {
		response["warning_count"] = n
		if !s.engine.Obfuscating() {
			shown := res.Warnings
			if n > maxReportedWarnings {
				shown = shown[:maxReportedWarnings]
			}
			warnings := make([]string, len(shown))
			for i, w := range shown {
				warnings[i] = w.String()
			}
			response["warnings"] = warnings
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// failureData describes a failed run. Error text can name files, so it is
// withheld when obfuscation is on.
func (s *Server) failureData(res *indexer.Result, err error) map[string]interface{} {
	data := map[string]interface{}{}
	if res != nil {
		data["build_id"] = res.BuildID
		data["stale"] = res.Stale
		if n := len(res.Transitions); n > 1 {
			data["failed_after"] = string(res.Transitions[n-2].To)
		}
	}
	if !s.engine.Obfuscating() {
		data["error"] = err.Error()
	}
	return data
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	collection := getStringDefault(args, "collection", "")
	if collection == "" {
		path := getStringDefault(args, "path", "")
		if path == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, "path or collection parameter is required", map[string]interface{}{
				"param":  "path",
				"reason": "missing or empty",
			})
		}
		if !filepath.IsAbs(path) {
			return nil, pathError(ErrPathNotAbsolute)
		}
		collection = engine.CollectionName(path)
	}

	status, err := s.engine.Status(ctx, collection)
	if errors.Is(err, snapshot.ErrInvalidCollection) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid collection name", map[string]interface{}{
			"param":  "collection",
			"reason": err.Error(),
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":    status.Indexed,
		"collection": status.Collection,
		"indexing":   status.Indexing,
		"obfuscated": status.Obfuscated,
	}
	if !status.Indexed {
		response["message"] = "Collection not indexed. Use the index_codebase tool to index it."
	} else {
		response["snapshot"] = map[string]interface{}{
			"build_id":  status.BuildID,
			"built_at":  status.BuiltAt.Format(time.RFC3339),
			"root_hash": status.RootHash.Hex(),
			"files":     status.Files,
		}
	}
	if st := status.Storage; st != nil {
		response["statistics"] = map[string]interface{}{
			"files_count":      st.FilesCount,
			"chunks_count":     st.ChunksCount,
			"embeddings_count": st.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", st.IndexSizeMB),
		}
		response["health"] = map[string]interface{}{
			"database_accessible":  st.Health.DatabaseAccessible,
			"embeddings_available": st.Health.EmbeddingsAvailable,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func pathError(err error) error {
	code := ErrorCodeInvalidParams
	if errors.Is(err, ErrPathNotFound) {
		code = ErrorCodePathNotFound
	}
	return newMCPError(code, "invalid path", map[string]interface{}{
		"param":  "path",
		"reason": err.Error(),
	})
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
