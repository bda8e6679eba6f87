package calendar

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/pmarkell/routine-scheduler/internal/models"
)

// PostgresStore implements EventStore against a local Postgres table. It is
// the backend used when no Google account is wired up, and it is what the
// handler and worker tests run against.
type PostgresStore struct {
	db       *sql.DB
	location *time.Location
}

// NewPostgresStore connects to the database and verifies the connection.
func NewPostgresStore(databaseURL, timezone string) (*PostgresStore, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", timezone, err)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &PostgresStore{db: db, location: location}, nil
}

// EnsureSchema creates the events table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS calendar_events (
			id UUID PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			label TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS calendar_events_window_idx
			ON calendar_events (calendar_id, start_time, end_time)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// ListEvents returns all events overlapping [start, end), ordered by start.
func (s *PostgresStore) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	query := `
		SELECT id, label, start_time, end_time
		FROM calendar_events
		WHERE calendar_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`
	rows, err := s.db.QueryContext(ctx, query, calendarID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.CalendarEvent
	for rows.Next() {
		var ev models.CalendarEvent
		var id uuid.UUID
		if err := rows.Scan(&id, &ev.Label, &ev.Start, &ev.End); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.ID = id.String()
		ev.Start = ev.Start.In(s.location)
		ev.End = ev.End.In(s.location)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// CreateEvent inserts an event with a generated UUID.
func (s *PostgresStore) CreateEvent(ctx context.Context, calendarID, label string, start, end time.Time) (*models.CalendarEvent, error) {
	id := uuid.New()
	query := `
		INSERT INTO calendar_events (id, calendar_id, label, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query, id, calendarID, label, start, end); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &models.CalendarEvent{
		ID:    id.String(),
		Label: label,
		Start: start.In(s.location),
		End:   end.In(s.location),
	}, nil
}

// DeleteEvent removes an event by ID.
func (s *PostgresStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	id, err := uuid.Parse(eventID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", eventID, err)
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1 AND calendar_id = $2`, id, calendarID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("event %s not found", eventID)
	}
	return nil
}

// Ping verifies the database connection (used by health checks).
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
