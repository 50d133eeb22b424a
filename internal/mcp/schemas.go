package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a source tree into token-bounded chunks. Only files changed since the last run are re-chunked.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to index",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection name; derived from the path when omitted",
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, ignore the previous snapshot and rebuild the collection from scratch",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query the indexing status and statistics of a collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path that was indexed",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection name; takes precedence over path",
				},
			},
		},
	}
}
