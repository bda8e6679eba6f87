package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewScheduleCmd creates the schedule command
func NewScheduleCmd() *cobra.Command {
	var startFlag string
	var daysFlag int
	var noReschedule bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule routine tasks over a date range",
		Long:  "Places each recurring task on the calendar, rescheduling around conflicts unless --no-reschedule is set",
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
				decisions, err := sched.ScheduleRange(ctx, start, days, !noReschedule)
				if err != nil {
					return fmt.Errorf("schedule run failed: %w", err)
				}
				printDecisions(decisions, start, days)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&daysFlag, "days", 0, "Number of days to schedule (default SCHEDULE_DAYS)")
	cmd.Flags().BoolVar(&noReschedule, "no-reschedule", false, "Skip conflicting tasks instead of moving them")

	return cmd
}
