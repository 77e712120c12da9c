package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/webpro/unbarrelify/pkg/engine"
	"github.com/webpro/unbarrelify/pkg/resolver"
)

func (s *Server) handlePlanBarrelRemoval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !filepath.IsAbs(root) {
		return mcp.NewToolResultError(fmt.Sprintf("root must be an absolute path: %s", root)), nil
	}

	opts := s.base
	opts.Root = root
	opts.DryRun = true
	opts.UnsafeNamespace = req.GetBool("unsafe_namespace", opts.UnsafeNamespace)
	if raw := req.GetString("ext", ""); raw != "" {
		ext, err := resolver.ParseExtMode(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Ext = ext
	}

	rep, err := engine.New(opts, s.logger).Run(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("plan failed", err), nil
	}
	return jsonResult(rep)
}

func (s *Server) handleInspectModule(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !filepath.IsAbs(path) {
		return mcp.NewToolResultError(fmt.Sprintf("path must be absolute: %s", path)), nil
	}

	ins, err := engine.New(s.base, s.logger).Inspect(path)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("inspect failed", err), nil
	}
	return jsonResult(ins)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
