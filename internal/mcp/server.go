// Package mcp exposes context assembly as Model Context Protocol tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/ctxpack/internal/assembler"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes context assembly tools.
type Server struct {
	svc *assembler.Service
	// requester is used when a tool call does not name one.
	requester string
	mcp       *server.MCPServer
}

// NewServer creates a new MCP server over svc.
func NewServer(svc *assembler.Service, defaultRequester string) *Server {
	s := &Server{
		svc:       svc,
		requester: defaultRequester,
	}

	s.mcp = server.NewMCPServer(
		"ctxpack",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveContextTool, s.handleRetrieveContext)
	s.mcp.AddTool(buildPromptTool, s.handleBuildPrompt)
	s.mcp.AddTool(contextStatsTool, s.handleContextStats)
	s.mcp.AddTool(compressHistoryTool, s.handleCompressHistory)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
