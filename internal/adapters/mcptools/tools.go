// Package mcptools exposes context assembly and the phase-gated workflow as
// MCP tools. Each tool holds its service, describes itself with Definition
// and answers calls with Handle.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/example/apm/internal/errs"
	"github.com/example/apm/internal/ports/primary"
)

var entityKinds = []string{"project", "work_item", "task"}

// AssembleContextTool handles the assemble_context MCP tool.
type AssembleContextTool struct {
	service primary.ContextService
}

// NewAssembleContextTool creates an AssembleContextTool.
func NewAssembleContextTool(service primary.ContextService) *AssembleContextTool {
	return &AssembleContextTool{service: service}
}

// Definition returns the MCP tool definition for assemble_context.
func (t *AssembleContextTool) Definition() mcp.Tool {
	return mcp.NewTool("assemble_context",
		mcp.WithDescription(
			"Assemble the merged 6W context for a project, work item or task, "+
				"scored for confidence and filtered for the requesting role. "+
				"Served from cache while fresh.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Entity kind"),
			mcp.Enum(entityKinds...),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity ID, e.g. TASK-001"),
		),
		mcp.WithString("role",
			mcp.Description("Requesting agent role, e.g. implementer or tester"),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Discard any cached payload and assemble anew"),
		),
	)
}

// Handle processes the assemble_context tool call.
func (t *AssembleContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	areq := primary.AssembleRequest{
		Kind: req.GetString("kind", ""),
		ID:   req.GetString("id", ""),
		Role: req.GetString("role", ""),
	}
	if areq.Kind == "" || areq.ID == "" {
		return mcp.NewToolResultError("'kind' and 'id' are required"), nil
	}

	var (
		payload *primary.ContextPayload
		err     error
	)
	if boolArg(req, "refresh", false) {
		payload, err = t.service.Refresh(ctx, areq)
	} else {
		payload, err = t.service.Assemble(ctx, areq)
	}
	if err != nil {
		return toolError("failed to assemble context", err)
	}
	return jsonResult(payload)
}

// TransitionTool handles the transition MCP tool.
type TransitionTool struct {
	service primary.WorkflowService
}

// NewTransitionTool creates a TransitionTool.
func NewTransitionTool(service primary.WorkflowService) *TransitionTool {
	return &TransitionTool{service: service}
}

// Definition returns the MCP tool definition for transition.
func (t *TransitionTool) Definition() mcp.Tool {
	return mcp.NewTool("transition",
		mcp.WithDescription(
			"Request a status change for a work item or task. The change is applied "+
				"only if the state machine allows it and every phase gate passes. "+
				"Refusals are returned as a result with reason 'illegal' or 'gate_blocked'.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Entity kind"),
			mcp.Enum("work_item", "task"),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity ID, e.g. WI-001"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("Requested status"),
			mcp.Enum("draft", "ready", "active", "blocked", "review", "done", "cancelled", "archived"),
		),
	)
}

// Handle processes the transition tool call.
func (t *TransitionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	treq := primary.TransitionRequest{
		Kind:      req.GetString("kind", ""),
		ID:        req.GetString("id", ""),
		Requested: req.GetString("status", ""),
	}
	if treq.Kind == "" || treq.ID == "" || treq.Requested == "" {
		return mcp.NewToolResultError("'kind', 'id' and 'status' are required"), nil
	}

	res, err := t.service.Transition(ctx, treq)
	if err != nil {
		return toolError("failed to transition", err)
	}
	return jsonResult(res)
}

// ValidatePhaseTool handles the validate_phase MCP tool.
type ValidatePhaseTool struct {
	service primary.WorkflowService
}

// NewValidatePhaseTool creates a ValidatePhaseTool.
func NewValidatePhaseTool(service primary.WorkflowService) *ValidatePhaseTool {
	return &ValidatePhaseTool{service: service}
}

// Definition returns the MCP tool definition for validate_phase.
func (t *ValidatePhaseTool) Definition() mcp.Tool {
	return mcp.NewTool("validate_phase",
		mcp.WithDescription(
			"Run a phase gate (D1, P1, I1, R1, O1, E1) against a work item or task "+
				"without changing anything. Returns what is missing and any warnings.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Entity kind"),
			mcp.Enum("work_item", "task"),
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity ID"),
		),
		mcp.WithString("phase",
			mcp.Required(),
			mcp.Description("Phase gate to run"),
			mcp.Enum("D1", "P1", "I1", "R1", "O1", "E1"),
		),
	)
}

// Handle processes the validate_phase tool call.
func (t *ValidatePhaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	id := req.GetString("id", "")
	phase := req.GetString("phase", "")
	if kind == "" || id == "" || phase == "" {
		return mcp.NewToolResultError("'kind', 'id' and 'phase' are required"), nil
	}

	res, err := t.service.ValidatePhase(ctx, kind, id, phase)
	if err != nil {
		return toolError("failed to validate phase", err)
	}
	return jsonResult(res)
}

func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError reports caller mistakes (validation, unknown entity) as tool
// errors the agent can read. Anything else is an internal failure.
func toolError(prefix string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, errs.ErrValidation) || errors.Is(err, errs.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err)), nil
	}
	return nil, fmt.Errorf("%s: %w", prefix, err)
}
