package models

import "time"

// CalendarEvent is an event read from (or written to) the external event
// store. The adapter normalizes all timestamps to naive local time in the
// configured calendar timezone before the core ever compares intervals, and
// expands all-day events to [00:00:00, 23:59:59] of their date.
type CalendarEvent struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the half-open interval [start, end) overlaps the
// event's interval. Intervals that only touch at a boundary do not overlap.
func (e *CalendarEvent) Overlaps(start, end time.Time) bool {
	return start.Before(e.End) && e.Start.Before(end)
}
