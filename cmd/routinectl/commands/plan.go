package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
)

// NewPlanCmd creates the plan command
func NewPlanCmd() *cobra.Command {
	var startFlag string
	var daysFlag int

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview placements without writing to the calendar",
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

			sched, err := rt.scheduler(calendar.NewDryRunStore(rt.store))
			if err != nil {
				return err
			}

			decisions, err := sched.ScheduleRange(context.Background(), start, days, true)
			if err != nil {
				return err
			}

			printDecisions(decisions, start, days)
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVarP(&daysFlag, "days", "d", 1, "Number of days to preview")

	return cmd
}
