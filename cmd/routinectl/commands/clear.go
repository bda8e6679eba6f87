package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewClearCmd creates the clear command
func NewClearCmd() *cobra.Command {
	var startFlag string
	var daysFlag int

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove scheduler-owned events over a date range",
		Long:  "Deletes calendar events whose titles match tasks in the registry; other events are untouched",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			start, days, err := rt.window(startFlag, daysFlag)
			if err != nil {
				return err
			}

			sched, err := rt.scheduler(rt.store)
			if err != nil {
				return err
			}

			ctx := context.Background()
			return rt.withRunLock(ctx, func() error {
				removed, err := sched.Clear(ctx, start, days)
				if err != nil {
					return fmt.Errorf("clear run failed: %w", err)
				}
				fmt.Printf("Removed %d event(s) from %s over %d day(s)\n",
					removed, start.Format("2006-01-02"), days)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&daysFlag, "days", 0, "Number of days to clear (default SCHEDULE_DAYS)")

	return cmd
}
