package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/apm/internal/ports/primary"
	"github.com/example/apm/internal/wire"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (units of work under a work item)",
	Long:  "Create, list, estimate and transition tasks",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task in draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		workItemID, _ := cmd.Flags().GetString("work-item")
		taskType, _ := cmd.Flags().GetString("type")
		effort, _ := cmd.Flags().GetFloat64("effort")

		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).CreateTask(ctx, primary.CreateTaskRequest{
			WorkItemID:  workItemID,
			Title:       args[0],
			Type:        taskType,
			EffortHours: effort,
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		workItemID, _ := cmd.Flags().GetString("work-item")
		status, _ := cmd.Flags().GetString("status")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).ListTasks(ctx, workItemID, status)
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).ShowTask(ctx, args[0], asJSON)
	},
}

var taskEffortCmd = &cobra.Command{
	Use:   "effort [task-id] [hours]",
	Short: "Set a task's effort estimate in hours",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		hours, err := parseHours(args[1])
		if err != nil {
			return err
		}
		return wire.EntityAdapterWithOutput(cmd.OutOrStdout()).SetTaskEffort(ctx, args[0], hours)
	},
}

var taskTransitionCmd = &cobra.Command{
	Use:   "transition [task-id] [status]",
	Short: "Move a task to a new status",
	Long: `Request a status change. Starting a task (ready -> active) runs the
time-boxing check; other gated moves run against the parent work item.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return wire.WorkflowAdapterWithOutput(cmd.OutOrStdout()).Transition(ctx, "task", args[0], args[1], asJSON)
	},
}

func init() {
	taskCreateCmd.Flags().StringP("work-item", "w", "", "Work item ID (required)")
	taskCreateCmd.Flags().StringP("type", "t", "implementation", "Task type")
	taskCreateCmd.Flags().Float64("effort", 0, "Effort estimate in hours")
	_ = taskCreateCmd.MarkFlagRequired("work-item")

	taskListCmd.Flags().StringP("work-item", "w", "", "Filter by work item")
	taskListCmd.Flags().String("status", "", "Filter by status")

	taskShowCmd.Flags().Bool("json", false, "Output as JSON")
	taskTransitionCmd.Flags().Bool("json", false, "Output the transition result as JSON")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskEffortCmd)
	taskCmd.AddCommand(taskTransitionCmd)
}

// TaskCmd returns the task command
func TaskCmd() *cobra.Command {
	return taskCmd
}
