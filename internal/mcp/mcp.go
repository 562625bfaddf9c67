// Package mcp implements the Model Context Protocol server for Lumen.
//
// The MCP server exposes the document assistant and knowledge-base search
// through MCP tools, so MCP-compatible agents can chat with documents and
// look up reference material over the same orchestrator the HTTP API uses.
// Caller identity comes from the authenticated HTTP transport via ctxutil;
// the tools enforce the same authorization and quota as the HTTP endpoints.
package mcp

import (
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/lumenlearn/lumen/internal/retrieval"
	"github.com/lumenlearn/lumen/internal/service/assistant"
)

// Server wraps the MCP server with Lumen's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	svc       *assistant.Service
	index     *retrieval.Index
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools.
func New(svc *assistant.Service, index *retrieval.Index, version string, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		index:  index,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"lumen",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
