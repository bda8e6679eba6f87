package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pmarkell/routine-scheduler/internal/models"
)

// DryRunStore wraps an EventStore so reads hit the backend but writes stay
// local. A scheduler run against it produces the decisions a real run would
// commit, without touching the calendar.
type DryRunStore struct {
	inner EventStore

	mu      sync.Mutex
	created []models.CalendarEvent
	nextID  int
}

// NewDryRunStore creates a dry-run wrapper around inner.
func NewDryRunStore(inner EventStore) *DryRunStore {
	return &DryRunStore{inner: inner}
}

// ListEvents delegates to the backend.
func (s *DryRunStore) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	return s.inner.ListEvents(ctx, calendarID, start, end)
}

// CreateEvent fabricates an event without calling the backend.
func (s *DryRunStore) CreateEvent(ctx context.Context, calendarID, label string, start, end time.Time) (*models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	ev := models.CalendarEvent{
		ID:    fmt.Sprintf("dry-run-%d", s.nextID),
		Label: label,
		Start: start,
		End:   end,
	}
	s.created = append(s.created, ev)
	return &ev, nil
}

// DeleteEvent is a no-op.
func (s *DryRunStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return nil
}

// Created returns the events a real run would have committed.
func (s *DryRunStore) Created() []models.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CalendarEvent, len(s.created))
	copy(out, s.created)
	return out
}
