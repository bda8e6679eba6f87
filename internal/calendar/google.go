package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pmarkell/routine-scheduler/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultGoogleBaseURL is the Google Calendar v3 API base
	DefaultGoogleBaseURL = "https://www.googleapis.com/calendar/v3"
	// CalendarScope is the OAuth scope required for event management
	CalendarScope = "https://www.googleapis.com/auth/calendar"
	// DefaultHTTPTimeout bounds every API call
	DefaultHTTPTimeout = 30 * time.Second
)

// GoogleConfig configures the Google Calendar adapter. There is no
// process-wide calendar state; everything the adapter needs is passed here.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timezone     string // IANA zone name used for normalization and event creation
	BaseURL      string // defaults to DefaultGoogleBaseURL
	HTTPClient   *http.Client // optional; replaces the oauth2 client (used by tests)
}

// GoogleClient implements EventStore against the Google Calendar v3 REST API.
// All timestamps returned by ListEvents are normalized into the configured
// timezone, and all-day events are expanded to [00:00:00, 23:59:59].
type GoogleClient struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	location   *time.Location
}

// NewGoogleClient builds the adapter. The refresh token is exchanged lazily
// by the oauth2 transport; no network call happens here.
func NewGoogleClient(cfg GoogleConfig) (*GoogleClient, error) {
	if cfg.Timezone == "" {
		return nil, fmt.Errorf("calendar timezone is required")
	}
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", cfg.Timezone, err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.ClientID == "" || cfg.RefreshToken == "" {
			return nil, fmt.Errorf("google calendar credentials are required")
		}
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{CalendarScope},
		}
		httpClient = oauthCfg.Client(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
		httpClient.Timeout = DefaultHTTPTimeout
	}

	return &GoogleClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		timezone:   cfg.Timezone,
		location:   location,
	}, nil
}

// Location returns the timezone all event timestamps are normalized into.
func (c *GoogleClient) Location() *time.Location {
	return c.location
}

// googleEventTime is the start/end object of the events API: timed events
// carry dateTime, all-day events carry date.
type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID      string          `json:"id"`
	Summary string          `json:"summary"`
	Start   googleEventTime `json:"start"`
	End     googleEventTime `json:"end"`
}

type googleEventList struct {
	Items         []googleEvent `json:"items"`
	NextPageToken string        `json:"nextPageToken"`
}

// ListEvents fetches every event overlapping [start, end), following
// nextPageToken until the listing is exhausted. Recurring events are expanded
// server-side via singleEvents.
func (c *GoogleClient) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	pageToken := ""

	for {
		query := url.Values{}
		query.Set("timeMin", start.In(c.location).Format(time.RFC3339))
		query.Set("timeMax", end.In(c.location).Format(time.RFC3339))
		query.Set("singleEvents", "true")
		query.Set("orderBy", "startTime")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(calendarID), query.Encode())
		var page googleEventList
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}

		for i := range page.Items {
			ev, err := c.normalizeEvent(&page.Items[i])
			if err != nil {
				return nil, err
			}
			events = append(events, *ev)
		}

		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateEvent inserts a timed event labeled with the task name.
func (c *GoogleClient) CreateEvent(ctx context.Context, calendarID, label string, start, end time.Time) (*models.CalendarEvent, error) {
	body := googleEvent{
		Summary: label,
		Start:   googleEventTime{DateTime: start.In(c.location).Format(time.RFC3339), TimeZone: c.timezone},
		End:     googleEventTime{DateTime: end.In(c.location).Format(time.RFC3339), TimeZone: c.timezone},
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
	var created googleEvent
	if err := c.do(ctx, http.MethodPost, endpoint, &body, &created); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return c.normalizeEvent(&created)
}

// DeleteEvent removes an event. A 410 from the API means the event is already
// gone, which the caller treats the same as success.
func (c *GoogleClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// normalizeEvent converts an API event into the core's single comparison
// frame. All-day events become [00:00:00, 23:59:59] of the days they cover
// (the API's end date is exclusive).
func (c *GoogleClient) normalizeEvent(ev *googleEvent) (*models.CalendarEvent, error) {
	out := &models.CalendarEvent{ID: ev.ID, Label: ev.Summary}

	switch {
	case ev.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid start: %w", ev.ID, err)
		}
		end, err := time.Parse(time.RFC3339, ev.End.DateTime)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid end: %w", ev.ID, err)
		}
		out.Start = start.In(c.location)
		out.End = end.In(c.location)
	case ev.Start.Date != "":
		startDay, err := time.ParseInLocation("2006-01-02", ev.Start.Date, c.location)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid all-day start: %w", ev.ID, err)
		}
		endDay, err := time.ParseInLocation("2006-01-02", ev.End.Date, c.location)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid all-day end: %w", ev.ID, err)
		}
		out.Start = startDay
		out.End = endDay.Add(-time.Second)
	default:
		return nil, fmt.Errorf("event %s: missing start time", ev.ID)
	}

	return out, nil
}

// do performs one API call, encoding the optional request body and decoding
// the optional response body.
func (c *GoogleClient) do(ctx context.Context, method, endpoint string, reqBody, respBody any) error {
	var reader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar API request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusGone && method == http.MethodDelete {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, string(payload))
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
