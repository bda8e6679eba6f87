package models

import "time"

// DecisionStatus is the terminal state of one placement attempt.
type DecisionStatus string

const (
	DecisionScheduled   DecisionStatus = "scheduled"
	DecisionRescheduled DecisionStatus = "scheduled_rescheduled"
	DecisionSkipped     DecisionStatus = "skipped"
)

// DecisionReason classifies why a placement attempt ended the way it did.
type DecisionReason string

const (
	ReasonOriginalSlot       DecisionReason = "original_slot"
	ReasonRescheduled        DecisionReason = "rescheduled_due_to_conflict"
	ReasonNoFreeSlot         DecisionReason = "no_free_slot_found"
	ReasonRescheduleDisabled DecisionReason = "conflict_and_reschedule_disabled"
)

// Decision is the audit record of attempting to place one task on one day.
// ScheduledStart and ScheduledEnd are present iff the task was placed.
type Decision struct {
	TaskName       string         `json:"task_name"`
	Status         DecisionStatus `json:"status"`
	ScheduledStart *time.Time     `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time     `json:"scheduled_end,omitempty"`
	Reason         DecisionReason `json:"reason"`
}

// Placed reports whether the decision resulted in a calendar event.
func (d *Decision) Placed() bool {
	return d.Status != DecisionSkipped
}
