package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/models"
	"github.com/pmarkell/routine-scheduler/internal/services/ai"
	"github.com/pmarkell/routine-scheduler/internal/validation"
)

// CommandHandler routes natural-language commands through the LLM and runs
// the resulting intent synchronously.
type CommandHandler struct {
	router   ai.CommandRouter
	schedule *ScheduleHandler
	logger   *zap.Logger
}

// NewCommandHandler creates a new command handler. router may be nil when no
// LLM is configured; commands then return 503.
func NewCommandHandler(router ai.CommandRouter, schedule *ScheduleHandler, logger *zap.Logger) *CommandHandler {
	return &CommandHandler{
		router:   router,
		schedule: schedule,
		logger:   logger,
	}
}

// RegisterRoutes registers command routes on the given router.
func (h *CommandHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/command", h.Command).Methods("POST")
}

// CommandRequest represents a natural-language command
type CommandRequest struct {
	Command string `json:"command" validate:"required,min=1,max=1000"`
}

// CommandResponse carries the parsed intent alongside the run result
type CommandResponse struct {
	Intent    *ai.Intent                   `json:"intent"`
	StartDate string                       `json:"start_date"`
	Days      int                          `json:"days"`
	Decisions map[string][]models.Decision `json:"decisions,omitempty"`
	Removed   *int                         `json:"removed,omitempty"`
}

// Command parses a natural-language command and executes it.
func (h *CommandHandler) Command(w http.ResponseWriter, r *http.Request) {
	if h.router == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Natural-language commands are not configured")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	intent, err := h.router.ParseCommand(r.Context(), req.Command)
	if err != nil {
		h.logger.Warn("command_parse_failed", zap.Error(err))
		if ai.IsRateLimitError(err) {
			respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "Command routing is rate limited, try again later")
			return
		}
		if ai.IsQuotaError(err) {
			respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Command routing is unavailable")
			return
		}
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "Could not understand command: "+sanitizeErrorMessage(err.Error()))
		return
	}

	start, err := intent.Start(h.schedule.loc)
	if err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return
	}

	resp := CommandResponse{
		Intent:    intent,
		StartDate: start.Format("2006-01-02"),
		Days:      intent.Days,
	}

	switch intent.Type {
	case ai.IntentScheduleRange, ai.IntentScheduleToday:
		decisions, runErr := h.schedule.runSchedule(r.Context(), start, intent.Days, intent.AllowReschedule)
		if runErr != nil {
			h.schedule.respondRunError(w, runErr)
			return
		}
		resp.Decisions = decisions
	case ai.IntentClearRange:
		removed, runErr := h.schedule.runClear(r.Context(), start, intent.Days)
		if runErr != nil {
			h.schedule.respondRunError(w, runErr)
			return
		}
		resp.Removed = &removed
	default:
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "Unsupported intent")
		return
	}

	h.logger.Info("command_executed",
		zap.String("intent", string(intent.Type)),
		zap.String("start_date", resp.StartDate),
		zap.Int("days", intent.Days))

	respondJSON(w, http.StatusOK, resp)
}
