package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/apm/internal/adapters/mcptools"
	"github.com/example/apm/internal/ctxutil"
	"github.com/example/apm/internal/version"
	"github.com/example/apm/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio",
		Long: `Run an MCP server on stdin/stdout exposing assemble_context,
transition and validate_phase to agents. Logs go to stderr.

Example client configuration:
  {"command": "apm", "args": ["serve", "--dir", "/path/to/workspace"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := NewContext()
			if err != nil {
				return err
			}
			logger := wire.Logger().Named("mcp")
			s := mcptools.NewServer(wire.ContextService(), wire.WorkflowService(), mcptools.Options{
				Version: version.Short(),
				Actor:   ctxutil.ActorFromContext(ctx),
				Logger:  logger,
				Emitter: wire.EventSink(),
			})
			logger.Info("serving MCP over stdio")
			return mcptools.ServeStdio(s)
		},
	}
}
