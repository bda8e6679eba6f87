package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmarkell/routine-scheduler/cmd/routinectl/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "routinectl",
		Short: "Routine scheduler control tool",
		Long:  "CLI for running schedule and clear operations against the configured calendar backend",
	}

	rootCmd.AddCommand(commands.NewScheduleCmd())
	rootCmd.AddCommand(commands.NewClearCmd())
	rootCmd.AddCommand(commands.NewPlanCmd())
	rootCmd.AddCommand(commands.NewTasksCmd())
	rootCmd.AddCommand(commands.NewExportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
