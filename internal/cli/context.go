package cli

import (
	"github.com/spf13/cobra"

	cliadapter "github.com/example/apm/internal/adapters/cli"
	"github.com/example/apm/internal/wire"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Assemble agent context",
}

var contextShowCmd = &cobra.Command{
	Use:   "show [kind] [id]",
	Short: "Show the assembled context for an entity",
	Long: `Assemble the merged 6W context, confidence score, freshness and
enrichments for a project, work item or task. Payloads are cached; use
--refresh to rebuild.

When --role is omitted the workspace default role (config "role" or
$APM_ROLE) is used, if any.

Examples:
  apm context show task TASK-003 --role implementer
  apm context show work_item WI-001 --json --refresh`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		role, _ := cmd.Flags().GetString("role")
		if !cmd.Flags().Changed("role") {
			role = wire.Config().Role
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		refresh, _ := cmd.Flags().GetBool("refresh")

		return wire.ContextAdapterWithOutput(cmd.OutOrStdout()).Show(ctx, args[0], args[1], cliadapter.ShowOptions{
			Role:    role,
			JSON:    asJSON,
			Refresh: refresh,
		})
	},
}

func init() {
	contextShowCmd.Flags().StringP("role", "r", "", "Agent role to filter for (e.g. implementer, reviewer)")
	contextShowCmd.Flags().Bool("json", false, "Output the payload as JSON")
	contextShowCmd.Flags().Bool("refresh", false, "Bypass the cache and reassemble")

	contextCmd.AddCommand(contextShowCmd)
}

// ContextCmd returns the context command
func ContextCmd() *cobra.Command {
	return contextCmd
}
