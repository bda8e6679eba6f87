package calendar

import (
	"context"
	"time"

	"github.com/pmarkell/routine-scheduler/internal/models"
)

// EventStore abstracts the external calendar backend. Implementations must
// return every event fully or partially overlapping the requested window,
// handle any server-side pagination internally, and normalize timestamps to
// naive local time in the backend's configured timezone so the scheduler only
// ever compares naive intervals.
type EventStore interface {
	// ListEvents returns all events overlapping [start, end) on the calendar.
	ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error)

	// CreateEvent creates an event and returns it with its assigned ID.
	CreateEvent(ctx context.Context, calendarID, label string, start, end time.Time) (*models.CalendarEvent, error)

	// DeleteEvent removes an event by ID.
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}
