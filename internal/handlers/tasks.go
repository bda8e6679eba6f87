package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pmarkell/routine-scheduler/internal/registry"
)

// TaskHandler serves the configured task registry
type TaskHandler struct {
	registry *registry.Registry
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(reg *registry.Registry) *TaskHandler {
	return &TaskHandler{registry: reg}
}

// RegisterRoutes registers task routes on the given router.
// The router should already have the /tasks prefix.
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
}

// ListTasks returns the configured routine. The registry is immutable for
// the lifetime of the process; edits land via the tasks file and a restart.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"tasks": h.registry.Tasks(),
		"count": h.registry.Len(),
	})
}
