package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/wire"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Record agent session summaries",
}

var sessionAddCmd = &cobra.Command{
	Use:   "add [work-item-id] [summary]",
	Short: "Record a finished session against a work item",
	Long: `Record what an agent session accomplished. The most recent summaries
are carried forward in assembled context.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		taskID, _ := cmd.Flags().GetString("task")
		role, _ := cmd.Flags().GetString("role")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).AddSession(ctx, primary.AddSessionRequest{
			WorkItemID: args[0],
			TaskID:     taskID,
			Role:       role,
			Summary:    args[1],
		})
	},
}

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Manage code references",
}

var refAddCmd = &cobra.Command{
	Use:   "add [kind] [id] [path]",
	Short: "Reference a source file from an entity",
	Long: `Attach a project-relative source path to a project, work item or task.
Paths are resolved against the project root during context assembly.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		note, _ := cmd.Flags().GetString("note")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).AddCodeRef(ctx, primary.AddCodeRefRequest{
			Kind: args[0],
			ID:   args[1],
			Path: args[2],
			Note: note,
		})
	},
}

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Manage detected-technology facts",
}

var factsSetCmd = &cobra.Command{
	Use:   "set [project-id] [technology] [confidence]",
	Short: "Record a technology detected in a project",
	Long: `Record or replace a plugin fact. Confidence is a number in [0, 1].

Example:
  apm facts set PROJ-001 postgres 0.9 --description "migrations under db/"`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		conf, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).SetPluginFact(ctx, primary.SetPluginFactRequest{
			ProjectID:   args[0],
			Technology:  args[1],
			Confidence:  conf,
			Description: description,
		})
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded workflow events, newest first",
	Long: `Show the transition and gate events recorded by the workflow.

Examples:
  apm events
  apm events --kind work_item --id WI-001 --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")
		id, _ := cmd.Flags().GetString("id")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.WorkflowAdapterWithOutput(cmd.OutOrStdout()).Events(ctx, primary.EventFilters{
			Kind:  kind,
			ID:    id,
			Limit: limit,
		}, asJSON)
	},
}

func init() {
	sessionAddCmd.Flags().String("task", "", "Task the session worked on")
	sessionAddCmd.Flags().String("role", "", "Role the agent played")
	sessionCmd.AddCommand(sessionAddCmd)

	refAddCmd.Flags().String("note", "", "Why the file matters")
	refCmd.AddCommand(refAddCmd)

	factsSetCmd.Flags().String("description", "", "Evidence for the detection")
	factsCmd.AddCommand(factsSetCmd)

	eventsCmd.Flags().String("kind", "", "Filter by entity kind")
	eventsCmd.Flags().String("id", "", "Filter by entity ID")
	eventsCmd.Flags().Int("limit", 20, "Maximum events to show (0 for all)")
	eventsCmd.Flags().Bool("json", false, "Output as JSON")
}

// SessionCmd returns the session command
func SessionCmd() *cobra.Command {
	return sessionCmd
}

// RefCmd returns the ref command
func RefCmd() *cobra.Command {
	return refCmd
}

// FactsCmd returns the facts command
func FactsCmd() *cobra.Command {
	return factsCmd
}

// EventsCmd returns the events command
func EventsCmd() *cobra.Command {
	return eventsCmd
}
