package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeScheduleRange is a job for scheduling tasks over a date range
	JobTypeScheduleRange JobType = "schedule_range"
	// JobTypeClearRange is a job for removing scheduler-owned events over a date range
	JobTypeClearRange JobType = "clear_range"
)

// Job represents a job in the queue
type Job struct {
	ID              uuid.UUID  `json:"id"`
	Type            JobType    `json:"type"`
	CalendarID      string     `json:"calendar_id"`
	StartDate       string     `json:"start_date"` // ISO date (2006-01-02)
	Days            int        `json:"days"`
	AllowReschedule bool       `json:"allow_reschedule"`
	NotBefore       *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter        *time.Time `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt       time.Time  `json:"created_at"`
	RetryCount      int        `json:"retry_count"`
	MaxRetries      int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, calendarID, startDate string, days int) *Job {
	return &Job{
		ID:              uuid.New(),
		Type:            jobType,
		CalendarID:      calendarID,
		StartDate:       startDate,
		Days:            days,
		AllowReschedule: true,
		CreatedAt:       time.Now(),
		RetryCount:      0,
		MaxRetries:      3,
	}
}

// Start parses the job's start date.
func (j *Job) Start() (time.Time, error) {
	return time.Parse("2006-01-02", j.StartDate)
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
