package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/spf13/cobra"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var startFlag string
	var daysFlag int
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the planned schedule as an iCalendar file",
		Long:  "Computes placements against a dry-run copy of the calendar and writes them as VEVENTs; nothing is committed",
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

			cal := ical.NewCalendar()
			cal.SetMethod(ical.MethodPublish)
			cal.SetProductId("-//routine-scheduler//EN")

			now := time.Now().UTC()
			count := 0
			for day, dayDecisions := range decisions {
				for i, d := range dayDecisions {
					if !d.Placed() || d.ScheduledStart == nil || d.ScheduledEnd == nil {
						continue
					}
					ev := cal.AddEvent(fmt.Sprintf("%s-%d@routine-scheduler", day, i))
					ev.SetDtStampTime(now)
					ev.SetStartAt(*d.ScheduledStart)
					ev.SetEndAt(*d.ScheduledEnd)
					ev.SetSummary(d.TaskName)
					count++
				}
			}

			serialized := cal.Serialize()
			if outputFlag == "" || outputFlag == "-" {
				fmt.Print(serialized)
				return nil
			}
			if err := os.WriteFile(outputFlag, []byte(serialized), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFlag, err)
			}
			fmt.Printf("Wrote %d event(s) to %s\n", count, outputFlag)
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Start date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&daysFlag, "days", 0, "Number of days to export (default SCHEDULE_DAYS)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (default stdout)")

	return cmd
}
