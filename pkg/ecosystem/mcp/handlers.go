// Package mcp exposes plan validation, execution and evaluation as MCP
// tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/triage/pkg/kernel/engine"
	"github.com/ormasoftchile/triage/pkg/kernel/harness"
	"github.com/ormasoftchile/triage/pkg/kernel/schema"
	"github.com/ormasoftchile/triage/pkg/kernel/validate"
	"github.com/ormasoftchile/triage/pkg/planner"
)

// Handlers implements the triage tools. Planner may be nil, in which case
// triage/evaluate needs an explicit plan.
type Handlers struct {
	Engine        *engine.Engine
	Rules         validate.Rules
	Planner       planner.Planner
	Configuration string
	Prices        map[string]harness.Price
	Logger        *slog.Logger
}

// HandleValidatePlan implements the triage/validate_plan tool.
func (h *Handlers) HandleValidatePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var (
		doc   schema.Document
		diags []*validate.ValidationError
	)
	if raw, _ := args["plan"].(string); raw != "" {
		var err error
		if doc, err = schema.ParseDocument([]byte(raw)); err != nil {
			return errorResult(err.Error()), nil
		}
		diags = validate.Diagnose(doc, h.Rules)
	} else if path, _ := args["path"].(string); path != "" {
		doc, diags = validate.DiagnoseFile(path, h.Rules)
		if doc == nil {
			return errorResult(formatErrors(diags)), nil
		}
	} else {
		return errorResult("plan or path argument is required"), nil
	}

	f := validate.Plan(doc, h.Rules)
	return jsonResult(map[string]any{
		"findings":    f,
		"score":       validate.Score(f),
		"failed":      validate.Failed(f),
		"diagnostics": diags,
	}, validate.HasErrors(diags))
}

// HandleExecute implements the triage/execute tool.
func (h *Handlers) HandleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ticket, _ := args["ticket"].(string)
	if ticket == "" {
		return errorResult("ticket argument is required"), nil
	}
	doc, err := planArg(args)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	plan, err := schema.Compile(doc)
	if err != nil {
		return errorResult(fmt.Sprintf("compile plan: %s", err)), nil
	}

	res, err := h.Engine.Execute(ctx, plan, ticket)
	if err != nil {
		response := map[string]any{"status": engine.StatusError, "error": err.Error()}
		var se *engine.StepError
		if errors.As(err, &se) {
			response["step"] = se.Step
			response["log"] = se.Log
		}
		return jsonResult(response, true)
	}

	f := validate.Execution(plan, res.Log, h.Engine.Registry())
	return jsonResult(map[string]any{
		"status":          engine.StatusCompleted,
		"duration":        res.Duration.String(),
		"vars":            res.Vars,
		"log":             res.Log,
		"execution_eval":  f,
		"execution_score": validate.Score(f),
	}, false)
}

// HandleEvaluate implements the triage/evaluate tool.
func (h *Handlers) HandleEvaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ticket, _ := args["ticket"].(string)
	if ticket == "" {
		return errorResult("ticket argument is required"), nil
	}

	p := h.Planner
	if raw, _ := args["plan"].(string); raw != "" {
		doc, err := schema.ParseDocument([]byte(raw))
		if err != nil {
			return errorResult(err.Error()), nil
		}
		p = planner.Static{Doc: doc}
	}
	if p == nil {
		return errorResult("no planner configured; pass a plan"), nil
	}

	configuration, _ := args["configuration"].(string)
	if configuration == "" {
		configuration = h.Configuration
	}

	c := schema.Case{Ticket: ticket}
	c.Expected.Priority, _ = args["expected_priority"].(string)
	c.Expected.ShouldAlert, _ = args["should_alert"].(bool)
	c.Expected.ShouldMatchKnownIssue, _ = args["should_match_known_issue"].(bool)

	r := &harness.Runner{
		Planner: p,
		Engine:  h.Engine,
		Rules:   h.Rules,
		Prices:  h.Prices,
		Logger:  h.Logger,
	}
	res := r.EvaluateCase(ctx, c, configuration)
	return jsonResult(res, res.Status != harness.StatusScored)
}

// HandleSchema implements the triage/schema tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GeneratePlanJSONSchema(h.Rules.Actions)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func planArg(args map[string]any) (schema.Document, error) {
	if raw, _ := args["plan"].(string); raw != "" {
		return schema.ParseDocument([]byte(raw))
	}
	if path, _ := args["path"].(string); path != "" {
		return schema.LoadDocumentFile(path)
	}
	return nil, errors.New("plan or path argument is required")
}

func formatErrors(errs []*validate.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == validate.SeverityError {
			msgs = append(msgs, e.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

func jsonResult(v any, isErr bool) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
