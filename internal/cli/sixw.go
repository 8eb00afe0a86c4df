package cli

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/apm/internal/wire"
)

var sixwCmd = &cobra.Command{
	Use:   "sixw",
	Short: "Manage 6W context (who/what/where/when/why/how)",
	Long: `Set or show the 6W context stored at one level of the hierarchy.
Assembled context merges project, work item and task levels; use
"apm context show" to see the merged view.`,
}

var sixwSetCmd = &cobra.Command{
	Use:   "set [kind] [id]",
	Short: "Replace the 6W context of a project, work item or task",
	Long: `Replace one level's 6W context from a YAML or JSON document.
Fields missing from the document are cleared at that level.

Examples:
  apm sixw set work_item WI-001 --file wi-001.yaml
  cat ctx.json | apm sixw set project PROJ-001 --file -

Document keys:
  end_users, implementers, reviewers, functional_requirements,
  technical_constraints, acceptance_criteria, affected_services,
  repositories, deployment_targets, deadline, dependencies_timeline,
  business_value, risk_if_delayed, suggested_approach, existing_patterns`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")

		var (
			data []byte
			err  error
		)
		if path == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = afero.ReadFile(afero.NewOsFs(), path)
		}
		if err != nil {
			return fmt.Errorf("failed to read 6W document: %w", err)
		}
		c, err := decodeSixW(data)
		if err != nil {
			return err
		}

		ctx, err := NewContext()
		if err != nil {
			return err
		}
		return wire.ContextAdapterWithOutput(cmd.OutOrStdout()).SetSixW(ctx, args[0], args[1], c)
	},
}

var sixwShowCmd = &cobra.Command{
	Use:   "show [kind] [id]",
	Short: "Show the 6W context stored at one level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.ContextAdapterWithOutput(cmd.OutOrStdout()).ShowSixW(ctx, args[0], args[1], asJSON)
	},
}

func init() {
	sixwSetCmd.Flags().StringP("file", "f", "", "YAML or JSON document (- for stdin)")
	_ = sixwSetCmd.MarkFlagRequired("file")
	sixwShowCmd.Flags().Bool("json", false, "Output as JSON")

	sixwCmd.AddCommand(sixwSetCmd)
	sixwCmd.AddCommand(sixwShowCmd)
}

// SixWCmd returns the sixw command
func SixWCmd() *cobra.Command {
	return sixwCmd
}
