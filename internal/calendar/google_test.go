package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*GoogleClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewGoogleClient(GoogleConfig{
		Timezone:   "UTC",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client, server
}

func TestListEventsPagination(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"": `{"items": [
			{"id": "a", "summary": "Dentist",
			 "start": {"dateTime": "2024-06-03T09:00:00Z"},
			 "end": {"dateTime": "2024-06-03T10:00:00Z"}}
		], "nextPageToken": "page2"}`,
		"page2": `{"items": [
			{"id": "b", "summary": "Lunch",
			 "start": {"dateTime": "2024-06-03T12:00:00Z"},
			 "end": {"dateTime": "2024-06-03T13:00:00Z"}}
		]}`,
	}

	var gotCalendarPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCalendarPath = r.URL.Path
		if r.URL.Query().Get("singleEvents") != "true" {
			t.Errorf("expected singleEvents=true, got %q", r.URL.Query().Get("singleEvents"))
		}
		body, ok := pages[r.URL.Query().Get("pageToken")]
		if !ok {
			t.Errorf("unexpected pageToken %q", r.URL.Query().Get("pageToken"))
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	events, err := client.ListEvents(context.Background(), "primary", start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListEvents() unexpected error: %v", err)
	}
	if gotCalendarPath != "/calendars/primary/events" {
		t.Errorf("path = %q, want /calendars/primary/events", gotCalendarPath)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events across pages, got %d", len(events))
	}
	if events[0].ID != "a" || events[1].ID != "b" {
		t.Errorf("unexpected event order: %s, %s", events[0].ID, events[1].ID)
	}
	if events[0].Label != "Dentist" {
		t.Errorf("label = %q, want Dentist", events[0].Label)
	}
}

func TestListEventsAllDayNormalization(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [
			{"id": "holiday", "summary": "Holiday",
			 "start": {"date": "2024-06-03"},
			 "end": {"date": "2024-06-04"}}
		]}`))
	}))

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	events, err := client.ListEvents(context.Background(), "primary", start, start.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListEvents() unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	wantStart := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 3, 23, 59, 59, 0, time.UTC)
	if !events[0].Start.Equal(wantStart) {
		t.Errorf("all-day start = %v, want %v", events[0].Start, wantStart)
	}
	if !events[0].End.Equal(wantEnd) {
		t.Errorf("all-day end = %v, want %v", events[0].End, wantEnd)
	}
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body googleEvent
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if body.Summary != "Standup" {
			t.Errorf("summary = %q, want Standup", body.Summary)
		}
		if body.Start.TimeZone != "UTC" {
			t.Errorf("start timezone = %q, want UTC", body.Start.TimeZone)
		}
		body.ID = "created-1"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))

	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	created, err := client.CreateEvent(context.Background(), "primary", "Standup", start, start.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("CreateEvent() unexpected error: %v", err)
	}
	if created.ID != "created-1" {
		t.Errorf("id = %q, want created-1", created.ID)
	}
	if !created.Start.Equal(start) {
		t.Errorf("start = %v, want %v", created.Start, start)
	}
}

func TestDeleteEvent(t *testing.T) {
	t.Parallel()

	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.DeleteEvent(context.Background(), "primary", "ev-1"); err != nil {
		t.Fatalf("DeleteEvent() unexpected error: %v", err)
	}
	if gotPath != "/calendars/primary/events/ev-1" {
		t.Errorf("path = %q, want /calendars/primary/events/ev-1", gotPath)
	}
}

func TestDeleteEventAlreadyGone(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))

	if err := client.DeleteEvent(context.Background(), "primary", "ev-1"); err != nil {
		t.Errorf("410 on delete should not be an error, got: %v", err)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 403, "message": "rate limit"}}`, http.StatusForbidden)
	}))

	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	if _, err := client.ListEvents(context.Background(), "primary", start, start.AddDate(0, 0, 1)); err == nil {
		t.Error("expected error for 403 response")
	}
}

func TestNewGoogleClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewGoogleClient(GoogleConfig{Timezone: "Not/AZone", HTTPClient: http.DefaultClient}); err == nil {
		t.Error("expected error for unknown timezone")
	}
	if _, err := NewGoogleClient(GoogleConfig{Timezone: "UTC"}); err == nil {
		t.Error("expected error when credentials are missing")
	}
}
