package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekdayCodes are the short-codes accepted in a task's days list, in calendar order.
var WeekdayCodes = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Task is one recurring routine item. The registry loads tasks once at startup
// and they are immutable for the duration of a scheduling run. Name doubles as
// the ownership tag on calendar events the scheduler creates.
type Task struct {
	Name            string   `json:"name" yaml:"name" validate:"required,min=1,max=200"`
	Days            []string `json:"days" yaml:"days" validate:"required,min=1,dive,weekday"`
	StartTime       string   `json:"start_time" yaml:"start_time" validate:"required,clock"`
	DurationMinutes int      `json:"duration_minutes" yaml:"duration_minutes" validate:"required,gt=0,lte=1440"`
}

// WeekdayCode returns the short-code ("Mon".."Sun") for a date.
func WeekdayCode(date time.Time) string {
	return date.Format("Mon")
}

// RunsOn reports whether the task recurs on the given date's weekday.
func (t *Task) RunsOn(date time.Time) bool {
	code := WeekdayCode(date)
	for _, d := range t.Days {
		if d == code {
			return true
		}
	}
	return false
}

// Nominal returns the task's originally configured interval on the given date,
// before any conflict-driven adjustment.
func (t *Task) Nominal(date time.Time) (start, end time.Time, err error) {
	hour, minute, err := ParseClock(t.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("task %q: %w", t.Name, err)
	}
	start = time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
	end = start.Add(time.Duration(t.DurationMinutes) * time.Minute)
	return start, end, nil
}

// ParseClock parses a wall-clock "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time %q: hour out of range", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: minute out of range", s)
	}
	return hour, minute, nil
}
