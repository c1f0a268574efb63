package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with the triage tools registered.
func NewServer(version string, h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"triage",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("triage/validate_plan",
			mcp.WithDescription("Score a plan's structure and list schema and rule diagnostics"),
			mcp.WithString("plan", mcp.Description("Plan document as JSON or YAML")),
			mcp.WithString("path", mcp.Description("Path to a plan file, used when plan is empty")),
		),
		h.HandleValidatePlan,
	)

	s.AddTool(
		mcp.NewTool("triage/execute",
			mcp.WithDescription("Execute a plan against a ticket and score the execution log"),
			mcp.WithString("ticket", mcp.Required(), mcp.Description("Ticket text bound to $ticket")),
			mcp.WithString("plan", mcp.Description("Plan document as JSON or YAML")),
			mcp.WithString("path", mcp.Description("Path to a plan file, used when plan is empty")),
		),
		h.HandleExecute,
	)

	s.AddTool(
		mcp.NewTool("triage/evaluate",
			mcp.WithDescription("Plan, execute and score one ticket against its expected outcome"),
			mcp.WithString("ticket", mcp.Required(), mcp.Description("Ticket text")),
			mcp.WithString("configuration", mcp.Description("Planner configuration (model name)")),
			mcp.WithString("plan", mcp.Description("Fixed plan to evaluate instead of calling the planner")),
			mcp.WithString("expected_priority", mcp.Description("Expected priority: critical, high or normal")),
			mcp.WithBoolean("should_alert", mcp.Description("Whether a notification is expected")),
			mcp.WithBoolean("should_match_known_issue", mcp.Description("Whether a known issue is expected")),
		),
		h.HandleEvaluate,
	)

	s.AddTool(
		mcp.NewTool("triage/schema",
			mcp.WithDescription("Export the plan JSON Schema"),
		),
		h.HandleSchema,
	)

	return s
}
