package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/apm/internal/cli"
	"github.com/example/apm/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "apm",
		Short:   "apm - context assembly and phase-gated workflow for agent teams",
		Version: version.String(),
		Long: `apm tracks projects, work items and tasks, assembles their 6W context
with a confidence score for AI agents, and gates status changes on the
D1 -> P1 -> I1 -> R1 -> O1 -> E1 phase model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cli.BindGlobalFlags(rootCmd)

	// Workspace
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	// Entities
	rootCmd.AddCommand(cli.ProjectCmd())
	rootCmd.AddCommand(cli.WorkItemCmd())
	rootCmd.AddCommand(cli.TaskCmd())
	rootCmd.AddCommand(cli.SessionCmd())
	rootCmd.AddCommand(cli.RefCmd())
	rootCmd.AddCommand(cli.FactsCmd())

	// Context and workflow
	rootCmd.AddCommand(cli.SixWCmd())
	rootCmd.AddCommand(cli.ContextCmd())
	rootCmd.AddCommand(cli.GateCmd())
	rootCmd.AddCommand(cli.EventsCmd())

	// Agents
	rootCmd.AddCommand(cli.ServeCmd())

	err := rootCmd.Execute()
	if shutdownErr := cli.Shutdown(); shutdownErr != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", shutdownErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
