package scheduler

import (
	"context"
	"time"

	"github.com/pmarkell/routine-scheduler/internal/models"
)

// ScheduleRange runs ScheduleDay for each of the numDays dates starting at
// startDate, collecting decisions keyed by ISO date. Days are processed
// strictly sequentially and commit independently: on a store failure the
// returned map holds the days completed before it and the error names the day
// that failed. There is no all-or-nothing semantics across the range.
func (s *Scheduler) ScheduleRange(ctx context.Context, startDate time.Time, numDays int, allowReschedule bool) (map[string][]models.Decision, error) {
	results := make(map[string][]models.Decision, numDays)
	dayStart, _ := dayBounds(startDate)

	for offset := 0; offset < numDays; offset++ {
		date := dayStart.AddDate(0, 0, offset)
		decisions, err := s.ScheduleDay(ctx, date, allowReschedule)
		if err != nil {
			return results, err
		}
		results[date.Format("2006-01-02")] = decisions
	}

	return results, nil
}
