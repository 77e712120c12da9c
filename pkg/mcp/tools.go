package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	toolPlan    = "plan_barrel_removal"
	toolInspect = "inspect_module"
)

// ToolDefinition describes an MCP tool exposed by the server.
type ToolDefinition struct {
	Name        string
	Description string
}

// RegisteredTools returns the tool definitions.
func RegisteredTools() []ToolDefinition {
	return []ToolDefinition{
		{Name: toolPlan, Description: "Dry-run barrel removal over a project and return the report"},
		{Name: toolInspect, Description: "Exports, imports and barrel status of a single module"},
	}
}

func description(name string) string {
	for _, d := range RegisteredTools() {
		if d.Name == name {
			return d.Description
		}
	}
	return ""
}

func planBarrelRemovalTool() mcp.Tool {
	return mcp.NewTool(toolPlan,
		mcp.WithDescription(description(toolPlan)+". Lists the files that would be modified, the barrels that would be deleted or preserved, and an example diff. Nothing is written."),
		mcp.WithString("root", mcp.Required(), mcp.Description("Absolute path of the project root")),
		mcp.WithBoolean("unsafe_namespace", mcp.Description("Rewrite namespace imports of barrels spanning several modules into a synthesized object")),
		mcp.WithString("ext", mcp.Description("Extension of rewritten specifiers; omit to keep each import's style"), mcp.Enum("none", "js", "ts")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func inspectModuleTool() mcp.Tool {
	return mcp.NewTool(toolInspect,
		mcp.WithDescription(description(toolInspect)+", with the names it exports after following re-exports."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the module")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: planBarrelRemovalTool(), Handler: s.handlePlanBarrelRemoval},
		{Tool: inspectModuleTool(), Handler: s.handleInspectModule},
	}
}
