package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/apm/internal/wire"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run phase gates",
}

var gateCheckCmd = &cobra.Command{
	Use:   "check [kind] [id] [phase]",
	Short: "Check whether an entity passes a phase gate",
	Long: `Run one phase gate (D1, P1, I1, R1, O1, E1) without changing anything.
Exits non-zero when the gate fails.

Examples:
  apm gate check work_item WI-001 D1
  apm gate check task TASK-002 I1 --json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.WorkflowAdapterWithOutput(cmd.OutOrStdout()).Check(ctx, args[0], args[1], args[2], asJSON)
	},
}

func init() {
	gateCheckCmd.Flags().Bool("json", false, "Output the gate result as JSON")
	gateCmd.AddCommand(gateCheckCmd)
}

// GateCmd returns the gate command
func GateCmd() *cobra.Command {
	return gateCmd
}
