package scheduler

import (
	"fmt"
	"time"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
	"github.com/pmarkell/routine-scheduler/internal/models"
	"github.com/pmarkell/routine-scheduler/internal/registry"
	"go.uber.org/zap"
)

const (
	// DefaultDayEnd is the latest wall-clock time a rescheduled task may end
	DefaultDayEnd = "22:00"
	// DefaultStepMinutes is the slot-search increment
	DefaultStepMinutes = 15
)

// Options tunes the slot-search policy. Zero values fall back to the defaults.
type Options struct {
	DayEnd      string // "HH:MM" latest end for rescheduled slots
	StepMinutes int    // forward-scan increment in minutes
}

// Scheduler reconciles the task registry against one calendar. It is not safe
// for concurrent runs over overlapping date ranges; callers serialize runs per
// calendar identity (the run lock does this for the server and worker).
type Scheduler struct {
	store         calendar.EventStore
	registry      *registry.Registry
	calendarID    string
	dayEndHour    int
	dayEndMinute  int
	step          time.Duration
	logger        *zap.Logger
}

// New builds a scheduler. The options are validated here so a malformed
// day-end time fails at startup, never mid-run.
func New(store calendar.EventStore, reg *registry.Registry, calendarID string, opts Options, logger *zap.Logger) (*Scheduler, error) {
	if opts.DayEnd == "" {
		opts.DayEnd = DefaultDayEnd
	}
	if opts.StepMinutes <= 0 {
		opts.StepMinutes = DefaultStepMinutes
	}
	hour, minute, err := models.ParseClock(opts.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid day end: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:        store,
		registry:     reg,
		calendarID:   calendarID,
		dayEndHour:   hour,
		dayEndMinute: minute,
		step:         time.Duration(opts.StepMinutes) * time.Minute,
		logger:       logger,
	}, nil
}

// dayBounds returns midnight and the following midnight for a date.
func dayBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 0, 1)
}

// dayEnd returns the configured latest end time on a date.
func (s *Scheduler) dayEnd(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), s.dayEndHour, s.dayEndMinute, 0, 0, date.Location())
}
