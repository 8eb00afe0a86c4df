package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/wire"
)

var workItemCmd = &cobra.Command{
	Use:     "workitem",
	Aliases: []string{"wi"},
	Short:   "Manage work items",
	Long:    "Create, update and move work items through the phase-gated lifecycle",
}

var workItemCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new work item in draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		projectID, _ := cmd.Flags().GetString("project")
		itemType, _ := cmd.Flags().GetString("type")

		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).CreateWorkItem(ctx, primary.CreateWorkItemRequest{
			ProjectID: projectID,
			Title:     args[0],
			Type:      itemType,
		})
	},
}

var workItemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List work items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		projectID, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).ListWorkItems(ctx, projectID, status)
	},
}

var workItemShowCmd = &cobra.Command{
	Use:   "show [work-item-id]",
	Short: "Show work item details and gate fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).ShowWorkItem(ctx, args[0], asJSON)
	},
}

var workItemUpdateCmd = &cobra.Command{
	Use:   "update [work-item-id]",
	Short: "Update the gate fields of a work item",
	Long: `Update the fields the phase gates read. Only flags that are given change.

Acceptance criteria replace the whole list; prefix a criterion with "[x] "
to mark it met.

Examples:
  apm workitem update WI-001 --business-context "Cuts refund tickets in half"
  apm workitem update WI-001 --criterion "[x] endpoint exists" --criterion "audited"
  apm workitem update WI-001 --risk "double refunds" --tests-passing`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		req := primary.UpdateWorkItemRequest{ID: args[0]}
		flags := cmd.Flags()

		if flags.Changed("title") {
			v, _ := flags.GetString("title")
			req.Title = &v
		}
		if flags.Changed("business-context") {
			v, _ := flags.GetString("business-context")
			req.BusinessContext = &v
		}
		if flags.Changed("criterion") {
			raw, _ := flags.GetStringArray("criterion")
			criteria := parseCriteria(raw)
			req.AcceptanceCriteria = &criteria
		}
		if flags.Changed("risk") {
			v, _ := flags.GetStringArray("risk")
			req.Risks = &v
		}
		if flags.Changed("tests-passing") {
			v, _ := flags.GetBool("tests-passing")
			req.TestsPassing = &v
		}
		if flags.Changed("retrospective") {
			v, _ := flags.GetString("retrospective")
			req.Retrospective = &v
		}

		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).UpdateWorkItem(ctx, req)
	},
}

var workItemTransitionCmd = &cobra.Command{
	Use:   "transition [work-item-id] [status]",
	Short: "Move a work item to a new status",
	Long: `Request a status change. The state machine and the phase gates for
the move are checked first; a refused transition exits non-zero.

Examples:
  apm workitem transition WI-001 ready
  apm workitem transition WI-001 active --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.WorkflowAdapterWithOutput(cmd.OutOrStdout()).Transition(ctx, "work_item", args[0], args[1], asJSON)
	},
}

// parseCriteria reads "[x] text" as a met criterion and anything else as unmet.
func parseCriteria(raw []string) []primary.Criterion {
	out := make([]primary.Criterion, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		lower := strings.ToLower(r)
		switch {
		case strings.HasPrefix(lower, "[x]"):
			out = append(out, primary.Criterion{Text: strings.TrimSpace(r[3:]), Met: true})
		case strings.HasPrefix(r, "[ ]"):
			out = append(out, primary.Criterion{Text: strings.TrimSpace(r[3:])})
		default:
			out = append(out, primary.Criterion{Text: r})
		}
	}
	return out
}

func init() {
	workItemCreateCmd.Flags().StringP("project", "p", "", "Project ID (required)")
	workItemCreateCmd.Flags().StringP("type", "t", "feature", "Work item type (feature, bug, refactor, ...)")
	_ = workItemCreateCmd.MarkFlagRequired("project")

	workItemListCmd.Flags().StringP("project", "p", "", "Filter by project")
	workItemListCmd.Flags().String("status", "", "Filter by status")

	workItemShowCmd.Flags().Bool("json", false, "Output as JSON")

	workItemUpdateCmd.Flags().String("title", "", "New title")
	workItemUpdateCmd.Flags().String("business-context", "", "Business context (D1 gate)")
	workItemUpdateCmd.Flags().StringArray("criterion", nil, "Acceptance criterion; repeat for each (prefix \"[x] \" when met)")
	workItemUpdateCmd.Flags().StringArray("risk", nil, "Identified risk; repeat for each")
	workItemUpdateCmd.Flags().Bool("tests-passing", false, "Whether the test suite passes (R1 gate)")
	workItemUpdateCmd.Flags().String("retrospective", "", "Retrospective notes (E1 gate)")

	workItemTransitionCmd.Flags().Bool("json", false, "Output the transition result as JSON")

	workItemCmd.AddCommand(workItemCreateCmd)
	workItemCmd.AddCommand(workItemListCmd)
	workItemCmd.AddCommand(workItemShowCmd)
	workItemCmd.AddCommand(workItemUpdateCmd)
	workItemCmd.AddCommand(workItemTransitionCmd)
}

// WorkItemCmd returns the workitem command
func WorkItemCmd() *cobra.Command {
	return workItemCmd
}
