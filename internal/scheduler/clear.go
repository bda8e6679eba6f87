package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Clear deletes every event in [startDate, startDate+numDays) whose label
// matches a registry task name, regardless of which run created it, and
// returns the number deleted. It performs no conflict detection and is the
// only operation that deletes. Running it twice deletes nothing the second
// time.
func (s *Scheduler) Clear(ctx context.Context, startDate time.Time, numDays int) (int, error) {
	start, _ := dayBounds(startDate)
	end := start.AddDate(0, 0, numDays)

	events, err := s.store.ListEvents(ctx, s.calendarID, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to list events: %w", err)
	}

	deleted := 0
	for i := range events {
		if !s.registry.Owns(events[i].Label) {
			continue
		}
		if err := s.store.DeleteEvent(ctx, s.calendarID, events[i].ID); err != nil {
			return deleted, fmt.Errorf("failed to delete event %s (%q): %w", events[i].ID, events[i].Label, err)
		}
		deleted++
		s.logger.Info("event_cleared",
			zap.String("event_id", events[i].ID),
			zap.String("label", events[i].Label),
			zap.Time("start", events[i].Start),
		)
	}

	return deleted, nil
}
