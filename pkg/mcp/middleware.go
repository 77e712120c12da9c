package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/webpro/unbarrelify/pkg/mcplog"
)

// loggingMiddleware records every tool call in the JSONL call log. Log
// failures never affect the result.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			entry := mcplog.NewEntry(req.Params.Name, req.GetArguments(), start, result, err)
			if werr := s.calls.Write(entry); werr != nil {
				s.logger.Debug("failed to log tool call", "tool", req.Params.Name, "error", werr)
			}
			return result, err
		}
	}
}
