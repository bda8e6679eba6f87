package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pmarkell/routine-scheduler/internal/models"
)

func TestHealthCheckBasic(t *testing.T) {
	t.Parallel()
	h := NewHealthChecker(nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks != nil {
		t.Errorf("basic mode should not run dependency checks, got %v", resp.Checks)
	}
}

func TestHealthCheckExtended(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantHealth string
	}{
		{
			name: "all healthy",
			checks: map[string]Pinger{
				"store": PingFunc(func(ctx context.Context) error { return nil }),
				"redis": PingFunc(func(ctx context.Context) error { return nil }),
			},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name: "one dependency down",
			checks: map[string]Pinger{
				"store": PingFunc(func(ctx context.Context) error { return nil }),
				"queue": PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
		},
		{
			name: "nil check skipped",
			checks: map[string]Pinger{
				"store": nil,
			},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHealthChecker(tt.checks)

			req := httptest.NewRequest("GET", "/healthz?mode=extended", nil)
			rec := httptest.NewRecorder()
			h.HealthCheck(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("health = %q, want %q", resp.Status, tt.wantHealth)
			}
		})
	}
}

func TestListTasks(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t, &fakeStore{}, nil)
	th := NewTaskHandler(h.registry)

	req := httptest.NewRequest("GET", "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()
	th.ListTasks(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	env := decodeEnvelope(t, rec)
	var resp struct {
		Tasks []models.Task `json:"tasks"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if resp.Count != 1 || len(resp.Tasks) != 1 {
		t.Fatalf("count = %d, tasks = %d, want 1 each", resp.Count, len(resp.Tasks))
	}
	if resp.Tasks[0].Name != "Morning run" {
		t.Errorf("task name = %q, want %q", resp.Tasks[0].Name, "Morning run")
	}
}
