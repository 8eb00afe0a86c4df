package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/wire"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Create, list and show projects, the root of the context hierarchy",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		root, _ := cmd.Flags().GetString("root")

		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).CreateProject(ctx, primary.CreateProjectRequest{
			Name:        args[0],
			Description: description,
			RootPath:    root,
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).ListProjects(ctx)
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show [project-id]",
	Short: "Show project details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).ShowProject(ctx, args[0], asJSON)
	},
}

func init() {
	projectCreateCmd.Flags().StringP("description", "d", "", "Project description")
	projectCreateCmd.Flags().String("root", "", "Source root used to resolve code references")
	projectShowCmd.Flags().Bool("json", false, "Output as JSON")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
}

// ProjectCmd returns the project command
func ProjectCmd() *cobra.Command {
	return projectCmd
}
