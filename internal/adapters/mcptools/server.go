package mcptools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/example/apm/internal/ctxutil"
	"github.com/example/apm/internal/events"
	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/ports/secondary"
)

// ServerName is the MCP server name announced to clients.
const ServerName = "apm"

type toolHandler = server.ToolHandlerFunc

// Options configure the MCP server.
type Options struct {
	Version string
	Actor   string // attributed on workflow events when the caller sets none
	Logger  *zap.Logger
	Emitter secondary.EventEmitter // records a tool.called event per call; may be nil
}

// NewServer creates an MCP server exposing assemble_context, transition and
// validate_phase.
func NewServer(contexts primary.ContextService, workflow primary.WorkflowService, opts Options) *server.MCPServer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	wrap := instrument(opts.Actor, opts.Emitter, logger)

	assemble := NewAssembleContextTool(contexts)
	s.AddTool(assemble.Definition(), wrap(assemble.Handle))

	transition := NewTransitionTool(workflow)
	s.AddTool(transition.Definition(), wrap(transition.Handle))

	validate := NewValidatePhaseTool(workflow)
	s.AddTool(validate.Definition(), wrap(validate.Handle))

	return s
}

// ServeStdio serves s over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// instrument attaches the configured actor to each call, logs it and
// records it on the event sink.
func instrument(actor string, emitter secondary.EventEmitter, logger *zap.Logger) func(toolHandler) toolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next toolHandler) toolHandler {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if actor != "" && ctxutil.ActorFromContext(ctx) == "" {
				ctx = ctxutil.WithActorID(ctx, actor)
			}
			start := time.Now()
			res, err := next(ctx, req)

			fields := []zap.Field{
				zap.String("tool", req.Params.Name),
				zap.Duration("elapsed", time.Since(start)),
			}
			outcome := "ok"
			switch {
			case err != nil:
				outcome = "failed"
				logger.Error("mcp tool failed", append(fields, zap.Error(err))...)
			case res != nil && res.IsError:
				outcome = "rejected"
				logger.Info("mcp tool rejected call", fields...)
			default:
				logger.Debug("mcp tool call", fields...)
			}
			recordCall(ctx, emitter, req, outcome)
			return res, err
		}
	}
}

// recordCall emits a tool.called event. Calls that name no entity are only
// logged, since every event belongs to one.
func recordCall(ctx context.Context, emitter secondary.EventEmitter, req mcp.CallToolRequest, outcome string) {
	kind, id := req.GetString("kind", ""), req.GetString("id", "")
	if emitter == nil || kind == "" || id == "" {
		return
	}
	emitter.Emit(secondary.EventRecord{
		Type:       events.TypeToolCalled,
		EntityKind: kind,
		EntityID:   id,
		Phase:      req.GetString("phase", ""),
		ToStatus:   req.GetString("status", ""),
		Actor:      ctxutil.ActorFromContext(ctx),
		Detail:     req.Params.Name + ": " + outcome,
	})
}

const instructions = `apm assembles 6W context for projects, work items and tasks and enforces a
phase-gated workflow (D1 discovery, P1 planning, I1 implementation, R1 review,
O1 operations, E1 evolution).

Call assemble_context before starting work and check the confidence band:
green is trustworthy, yellow needs care, red means ask for more context.
Use validate_phase to see what a gate still needs, then transition to move
a work item or task forward.`
