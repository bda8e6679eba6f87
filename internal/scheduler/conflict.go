package scheduler

import (
	"time"

	"github.com/pmarkell/routine-scheduler/internal/models"
)

// Conflicts reports whether the candidate half-open interval [start, end)
// overlaps any of the existing events, ignoring events whose label is in the
// ownership set. Owned events never block placement: the registry's own tasks
// do not fight each other, only independent user events do, which is what
// makes re-running a day idempotent.
func Conflicts(events []models.CalendarEvent, start, end time.Time, owned map[string]struct{}) bool {
	for i := range events {
		if _, ok := owned[events[i].Label]; ok {
			continue
		}
		if events[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}
