// Package mcp exposes barrel removal planning over the Model Context
// Protocol.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/webpro/unbarrelify/pkg/engine"
	"github.com/webpro/unbarrelify/pkg/mcplog"
)

const serverName = "unbarrelify"

// Server implements the MCP server. Tools only plan; nothing on disk is
// modified.
type Server struct {
	mcpServer *server.MCPServer
	base      engine.Options
	calls     *mcplog.Logger // nil disables the call log
	logger    *slog.Logger
}

// NewServer creates a server whose runs start from base. Tool arguments
// override the root, extension mode and namespace policy. A nil logger
// uses slog.Default().
func NewServer(base engine.Options, version string, calls *mcplog.Logger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{base: base, calls: calls, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if calls != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer(serverName, version, opts...)
	s.mcpServer.AddTools(s.tools()...)

	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP on stdio", "tools", len(RegisteredTools()))
	return server.ServeStdio(s.mcpServer)
}
