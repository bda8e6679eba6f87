package scheduler

import (
	"time"

	"github.com/pmarkell/routine-scheduler/internal/models"
)

// FindSlot scans forward from nominalStart in step increments for the first
// interval of the given duration that does not conflict with any non-owned
// event, stopping once a candidate would end after dayEnd. Tasks never move
// earlier than their nominal time and never spill to another day, so if the
// remaining window cannot fit the duration the search space is empty and ok
// is false.
func FindSlot(events []models.CalendarEvent, nominalStart time.Time, duration time.Duration, dayEnd time.Time, step time.Duration, owned map[string]struct{}) (start, end time.Time, ok bool) {
	for candStart := nominalStart; !candStart.Add(duration).After(dayEnd); candStart = candStart.Add(step) {
		candEnd := candStart.Add(duration)
		if !Conflicts(events, candStart, candEnd, owned) {
			return candStart, candEnd, true
		}
	}
	return time.Time{}, time.Time{}, false
}
