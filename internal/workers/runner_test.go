package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/lock"
	"github.com/pmarkell/routine-scheduler/internal/models"
	"github.com/pmarkell/routine-scheduler/internal/queue"
	"github.com/pmarkell/routine-scheduler/internal/registry"
	"github.com/pmarkell/routine-scheduler/internal/scheduler"
)

// monday is a fixed Monday used across these tests.
var monday = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	events    []models.CalendarEvent
	nextID    int
	createErr error
}

func (s *fakeStore) ListEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	var out []models.CalendarEvent
	for _, ev := range s.events {
		if ev.Overlaps(start, end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateEvent(ctx context.Context, calendarID, label string, start, end time.Time) (*models.CalendarEvent, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	ev := models.CalendarEvent{
		ID:    fmt.Sprintf("ev-%d", s.nextID),
		Label: label,
		Start: start,
		End:   end,
	}
	s.events = append(s.events, ev)
	return &ev, nil
}

func (s *fakeStore) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	for i, ev := range s.events {
		if ev.ID == eventID {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("event %s not found", eventID)
}

type mockJobQueue struct {
	enqueued []*queue.Job
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)

type mockMessage struct {
	job      *queue.Job
	acked    bool
	nacked   bool
	requeued bool
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return nil
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeued = requeue
	return nil
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

var _ queue.MessageInterface = (*mockMessage)(nil)

// fakeRedis satisfies lock.Client for lock-contention tests.
type fakeRedis struct {
	held map[string]string
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, exists := f.held[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.held[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	delete(f.held, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func mustRegistry(t *testing.T, tasks ...models.Task) *registry.Registry {
	t.Helper()
	reg, err := registry.New(tasks)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return reg
}

func newProcessor(t *testing.T, store *fakeStore, locks *lock.RunLock, jq queue.JobQueue) *RunProcessor {
	t.Helper()
	reg := mustRegistry(t, models.Task{
		Name:            "Morning run",
		Days:            []string{"Mon"},
		StartTime:       "07:00",
		DurationMinutes: 45,
	})
	return NewRunProcessor(store, reg, scheduler.Options{}, locks, jq, zap.NewNop())
}

func TestProcessJobScheduleRange(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	proc := newProcessor(t, store, nil, nil)

	job := queue.NewJob(queue.JobTypeScheduleRange, "primary", monday.Format("2006-01-02"), 1)
	msg := &mockMessage{job: job}

	if err := proc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("expected message to be acked")
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 event created, got %d", len(store.events))
	}
	if store.events[0].Label != "Morning run" {
		t.Errorf("event label = %q, want %q", store.events[0].Label, "Morning run")
	}
}

func TestProcessJobClearRange(t *testing.T) {
	t.Parallel()
	store := &fakeStore{events: []models.CalendarEvent{
		{ID: "ev-1", Label: "Morning run", Start: monday.Add(7 * time.Hour), End: monday.Add(7*time.Hour + 45*time.Minute)},
		{ID: "ev-2", Label: "Dentist", Start: monday.Add(9 * time.Hour), End: monday.Add(10 * time.Hour)},
	}}
	proc := newProcessor(t, store, nil, nil)

	job := queue.NewJob(queue.JobTypeClearRange, "primary", monday.Format("2006-01-02"), 1)
	msg := &mockMessage{job: job}

	if err := proc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("expected message to be acked")
	}
	if len(store.events) != 1 || store.events[0].ID != "ev-2" {
		t.Errorf("expected only the unowned event to remain, got %+v", store.events)
	}
}

func TestProcessJobInvalidDateRetries(t *testing.T) {
	t.Parallel()
	proc := newProcessor(t, &fakeStore{}, nil, nil)

	job := queue.NewJob(queue.JobTypeScheduleRange, "primary", "next tuesday", 1)
	msg := &mockMessage{job: job}

	err := proc.ProcessJob(context.Background(), msg)
	if err == nil {
		t.Fatal("ProcessJob() expected error")
	}
	if !msg.nacked || !msg.requeued {
		t.Error("expected message to be nacked with requeue")
	}
	if job.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", job.RetryCount)
	}
}

func TestProcessJobMaxRetriesDeadLetters(t *testing.T) {
	t.Parallel()
	store := &fakeStore{createErr: errors.New("backend unavailable")}
	proc := newProcessor(t, store, nil, nil)

	job := queue.NewJob(queue.JobTypeScheduleRange, "primary", monday.Format("2006-01-02"), 1)
	job.RetryCount = job.MaxRetries
	msg := &mockMessage{job: job}

	err := proc.ProcessJob(context.Background(), msg)
	if err == nil {
		t.Fatal("ProcessJob() expected error")
	}
	if !msg.nacked || msg.requeued {
		t.Error("expected message to be nacked without requeue")
	}
}

func TestProcessJobUnknownType(t *testing.T) {
	t.Parallel()
	proc := newProcessor(t, &fakeStore{}, nil, nil)

	msg := &mockMessage{job: &queue.Job{ID: uuid.New(), Type: "defragment"}}
	err := proc.ProcessJob(context.Background(), msg)
	if err == nil {
		t.Fatal("ProcessJob() expected error for unknown type")
	}
	if !msg.nacked || msg.requeued {
		t.Error("expected message to be dead-lettered")
	}
}

func TestProcessJobNotReadyAcks(t *testing.T) {
	t.Parallel()
	proc := newProcessor(t, &fakeStore{}, nil, nil)

	notBefore := time.Now().Add(time.Hour)
	job := queue.NewJob(queue.JobTypeScheduleRange, "primary", monday.Format("2006-01-02"), 1)
	job.NotBefore = &notBefore
	msg := &mockMessage{job: job}

	if err := proc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("expected not-ready message to be acked")
	}
}

func TestProcessJobLockHeldDefers(t *testing.T) {
	t.Parallel()
	client := &fakeRedis{held: map[string]string{"routine:runlock:primary": "other-run"}}
	locks := lock.NewRunLock(client, time.Minute)
	jq := &mockJobQueue{}
	proc := newProcessor(t, &fakeStore{}, locks, jq)

	job := queue.NewJob(queue.JobTypeScheduleRange, "primary", monday.Format("2006-01-02"), 1)
	msg := &mockMessage{job: job}

	if err := proc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.acked {
		t.Error("expected deferred message to be acked")
	}
	if len(jq.enqueued) != 1 {
		t.Fatalf("expected 1 re-enqueued job, got %d", len(jq.enqueued))
	}
	if jq.enqueued[0].NotBefore == nil || !jq.enqueued[0].NotBefore.After(time.Now()) {
		t.Error("expected re-enqueued job to carry a future NotBefore")
	}
}

func TestProcessJobLockAcquiredAndReleased(t *testing.T) {
	t.Parallel()
	client := &fakeRedis{held: map[string]string{}}
	locks := lock.NewRunLock(client, time.Minute)
	store := &fakeStore{}
	proc := newProcessor(t, store, locks, nil)

	job := queue.NewJob(queue.JobTypeScheduleRange, "primary", monday.Format("2006-01-02"), 1)
	msg := &mockMessage{job: job}

	if err := proc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 event created, got %d", len(store.events))
	}
	if len(client.held) != 0 {
		t.Error("expected lock to be released after the run")
	}
}
