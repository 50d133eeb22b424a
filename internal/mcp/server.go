package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/codeindex/internal/engine"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeindex"
	// ServerVersion is the current server version
	ServerVersion = "0.1.0"
)

// Server exposes an engine over MCP
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
	logger zerolog.Logger
}

// NewServer creates a new MCP server instance. The engine stays owned by
// the caller.
func NewServer(e *engine.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: e,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is canceled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("name", ServerName).Str("version", ServerVersion).Msg("MCP server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools. There is deliberately no tool for
// reversing obfuscated paths.
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
