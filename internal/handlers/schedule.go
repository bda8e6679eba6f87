package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
	"github.com/pmarkell/routine-scheduler/internal/lock"
	"github.com/pmarkell/routine-scheduler/internal/models"
	"github.com/pmarkell/routine-scheduler/internal/queue"
	"github.com/pmarkell/routine-scheduler/internal/registry"
	"github.com/pmarkell/routine-scheduler/internal/scheduler"
	"github.com/pmarkell/routine-scheduler/internal/validation"
)

const (
	// DefaultRangeDays is the horizon used when a request omits days
	DefaultRangeDays = 7
	// MaxRangeDays bounds a single run
	MaxRangeDays = 92
)

// ScheduleHandler handles schedule, plan, and clear requests
type ScheduleHandler struct {
	store      calendar.EventStore
	registry   *registry.Registry
	calendarID string
	opts       scheduler.Options
	locks      *lock.RunLock
	jobQueue   queue.JobQueue
	loc        *time.Location
	logger     *zap.Logger
}

// NewScheduleHandler creates a new schedule handler. locks and jobQueue may
// be nil; runs are then unserialized and async scheduling is unavailable.
func NewScheduleHandler(
	store calendar.EventStore,
	reg *registry.Registry,
	calendarID string,
	opts scheduler.Options,
	locks *lock.RunLock,
	jobQueue queue.JobQueue,
	loc *time.Location,
	logger *zap.Logger,
) *ScheduleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleHandler{
		store:      store,
		registry:   reg,
		calendarID: calendarID,
		opts:       opts,
		locks:      locks,
		jobQueue:   jobQueue,
		loc:        loc,
		logger:     logger,
	}
}

// RegisterRoutes registers scheduling routes on the given router.
// The router should already carry the /api/v1 prefix.
func (h *ScheduleHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/plan/today", h.PlanToday).Methods("GET")
	r.HandleFunc("/schedule", h.Schedule).Methods("POST")
	r.HandleFunc("/schedule/async", h.ScheduleAsync).Methods("POST")
	r.HandleFunc("/schedule/export.ics", h.ExportICS).Methods("GET")
	r.HandleFunc("/clear", h.Clear).Methods("POST")
}

// ScheduleRequest represents a schedule run request
type ScheduleRequest struct {
	StartDate       string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Days            int    `json:"days" validate:"omitempty,gte=1,lte=92"`
	AllowReschedule *bool  `json:"allow_reschedule"`
}

// ClearRequest represents a clear run request
type ClearRequest struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Days      int    `json:"days" validate:"omitempty,gte=1,lte=92"`
}

// ScheduleResponse is the result of a committed or previewed schedule run
type ScheduleResponse struct {
	StartDate       string                       `json:"start_date"`
	Days            int                          `json:"days"`
	AllowReschedule bool                         `json:"allow_reschedule"`
	Decisions       map[string][]models.Decision `json:"decisions"`
}

// PlanToday previews today's placements without touching the calendar.
func (h *ScheduleHandler) PlanToday(w http.ResponseWriter, r *http.Request) {
	today := h.today()

	dryRun := calendar.NewDryRunStore(h.store)
	sched, err := scheduler.New(dryRun, h.registry, h.calendarID, h.opts, h.logger)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}

	decisions, err := sched.ScheduleDay(r.Context(), today, true)
	if err != nil {
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "calendar backend error: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, ScheduleResponse{
		StartDate:       today.Format("2006-01-02"),
		Days:            1,
		AllowReschedule: true,
		Decisions: map[string][]models.Decision{
			today.Format("2006-01-02"): decisions,
		},
	})
}

// Schedule runs a synchronous schedule over a date range and commits the
// placements day by day.
func (h *ScheduleHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	start, days, err := h.window(req.StartDate, req.Days)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	allowReschedule := req.AllowReschedule == nil || *req.AllowReschedule

	decisions, err := h.runSchedule(r.Context(), start, days, allowReschedule)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ScheduleResponse{
		StartDate:       start.Format("2006-01-02"),
		Days:            days,
		AllowReschedule: allowReschedule,
		Decisions:       decisions,
	})
}

// runSchedule performs a committed schedule run under the run lock.
func (h *ScheduleHandler) runSchedule(ctx context.Context, start time.Time, days int, allowReschedule bool) (map[string][]models.Decision, error) {
	release, err := h.acquireRunLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	sched, err := scheduler.New(h.store, h.registry, h.calendarID, h.opts, h.logger)
	if err != nil {
		return nil, err
	}

	decisions, err := sched.ScheduleRange(ctx, start, days, allowReschedule)
	if err != nil {
		// Committed days stay committed; the error names the day that failed.
		return nil, fmt.Errorf("%w: %v", errStoreFailure, err)
	}
	return decisions, nil
}

// runClear removes owned events from a range under the run lock.
func (h *ScheduleHandler) runClear(ctx context.Context, start time.Time, days int) (int, error) {
	release, err := h.acquireRunLock(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	sched, err := scheduler.New(h.store, h.registry, h.calendarID, h.opts, h.logger)
	if err != nil {
		return 0, err
	}

	removed, err := sched.Clear(ctx, start, days)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errStoreFailure, err)
	}
	return removed, nil
}

// errStoreFailure marks calendar backend failures so handlers can map them
// to 502 responses.
var errStoreFailure = errors.New("calendar backend error")

// acquireRunLock takes the per-calendar run lock when one is configured.
// The returned func releases it and is safe to call when no lock is held.
func (h *ScheduleHandler) acquireRunLock(ctx context.Context) (func(), error) {
	if h.locks == nil {
		return func() {}, nil
	}
	handle, err := h.locks.Acquire(ctx, h.calendarID)
	if err != nil {
		return nil, err
	}
	return func() {
		if releaseErr := handle.Release(ctx); releaseErr != nil {
			h.logger.Warn("run_lock_release_failed", zap.Error(releaseErr))
		}
	}, nil
}

// respondRunError maps run errors to HTTP responses.
func (h *ScheduleHandler) respondRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		respondJSONError(w, http.StatusConflict, "Conflict", "Another scheduling run is in progress for this calendar")
	case errors.Is(err, errStoreFailure):
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", err.Error())
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
}

// ScheduleAsync enqueues a schedule run for the worker.
func (h *ScheduleHandler) ScheduleAsync(w http.ResponseWriter, r *http.Request) {
	if h.jobQueue == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Async scheduling is not configured")
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	start, days, err := h.window(req.StartDate, req.Days)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	job := queue.NewJob(queue.JobTypeScheduleRange, h.calendarID, start.Format("2006-01-02"), days)
	job.AllowReschedule = req.AllowReschedule == nil || *req.AllowReschedule

	if err := h.jobQueue.Enqueue(r.Context(), job); err != nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"start_date": job.StartDate,
		"days":       job.Days,
	})
}

// Clear removes scheduler-owned events over a date range.
func (h *ScheduleHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	start, days, err := h.window(req.StartDate, req.Days)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	removed, err := h.runClear(r.Context(), start, days)
	if err != nil {
		h.respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"start_date": start.Format("2006-01-02"),
		"days":       days,
		"removed":    removed,
	})
}

// today returns midnight of the current day in the calendar's timezone.
func (h *ScheduleHandler) today() time.Time {
	now := time.Now().In(h.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
}

// window resolves a start date and day count, applying defaults.
func (h *ScheduleHandler) window(startDate string, days int) (time.Time, int, error) {
	start := h.today()
	if startDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", startDate, h.loc)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("invalid start_date %q", startDate)
		}
		start = parsed
	}
	if days == 0 {
		days = DefaultRangeDays
	}
	if days < 1 || days > MaxRangeDays {
		return time.Time{}, 0, fmt.Errorf("days must be between 1 and %d", MaxRangeDays)
	}
	return start, days, nil
}
