package ai

import (
	"context"
	"time"
)

// IntentType identifies which scheduling action a natural-language command
// maps to.
type IntentType string

const (
	// IntentScheduleRange schedules tasks over a date range
	IntentScheduleRange IntentType = "schedule_range"
	// IntentClearRange removes scheduler-owned events over a date range
	IntentClearRange IntentType = "clear_range"
	// IntentScheduleToday schedules tasks for the current day only
	IntentScheduleToday IntentType = "schedule_today"
)

// Intent is the structured form of a routed command.
type Intent struct {
	Type            IntentType `json:"intent"`
	StartDate       string     `json:"start_date"` // ISO date (2006-01-02)
	Days            int        `json:"days"`
	AllowReschedule bool       `json:"allow_reschedule"`
}

// CommandRouter turns natural-language commands into structured intents.
type CommandRouter interface {
	ParseCommand(ctx context.Context, command string) (*Intent, error)
}

// Start parses the intent's start date, falling back to today in loc when
// the router left it empty.
func (i *Intent) Start(loc *time.Location) (time.Time, error) {
	if i.StartDate == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation("2006-01-02", i.StartDate, loc)
}
