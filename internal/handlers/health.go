package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger reports reachability of a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to the Pinger interface.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker handles health check requests. Dependency checks are
// optional; nil entries are skipped.
type HealthChecker struct {
	checks map[string]Pinger
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(checks map[string]Pinger) *HealthChecker {
	return &HealthChecker{checks: checks}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. In extended mode every
// registered dependency is pinged.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if r.URL.Query().Get("mode") == "extended" {
		results := make(map[string]string, len(h.checks))
		for name, pinger := range h.checks {
			if pinger == nil {
				continue
			}
			if err := h.ping(r.Context(), pinger); err != nil {
				response.Status = "unhealthy"
				results[name] = "unhealthy: " + err.Error()
			} else {
				results[name] = "healthy"
			}
		}
		response.Checks = results
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) ping(ctx context.Context, pinger Pinger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return pinger.Ping(ctx)
}
