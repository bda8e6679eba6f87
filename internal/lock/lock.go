// Package lock provides a Redis-backed advisory lock used to serialize
// scheduling runs against a single calendar. Two concurrent runs over the
// same calendar would each fetch the day's events before the other commits
// its placements, so both could claim the same free slot.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another run already holds the lock.
var ErrNotAcquired = errors.New("lock already held")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another run is never released from here.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Client is the subset of the go-redis API the lock needs.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RunLock serializes scheduler runs per calendar via SET NX with a TTL.
type RunLock struct {
	client Client
	ttl    time.Duration
}

// NewRunLock creates a RunLock. The TTL bounds how long a crashed run can
// block subsequent runs.
func NewRunLock(client Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{client: client, ttl: ttl}
}

// Handle represents a held lock and releases it on Release.
type Handle struct {
	lock  *RunLock
	key   string
	token string
}

// Acquire takes the lock for calendarID or returns ErrNotAcquired if another
// run holds it.
func (l *RunLock) Acquire(ctx context.Context, calendarID string) (*Handle, error) {
	key := lockKey(calendarID)
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Handle{lock: l, key: key, token: token}, nil
}

// Release releases the lock if this handle still owns it.
func (h *Handle) Release(ctx context.Context) error {
	if err := h.lock.client.Eval(ctx, releaseScript, []string{h.key}, h.token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

func lockKey(calendarID string) string {
	return "routine:runlock:" + calendarID
}
