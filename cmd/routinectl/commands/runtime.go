package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
	"github.com/pmarkell/routine-scheduler/internal/config"
	"github.com/pmarkell/routine-scheduler/internal/lock"
	"github.com/pmarkell/routine-scheduler/internal/models"
	"github.com/pmarkell/routine-scheduler/internal/registry"
	"github.com/pmarkell/routine-scheduler/internal/scheduler"
)

// runtime bundles everything a CLI run needs. The CLI talks to the calendar
// backend directly; no server or queue is involved, but committing commands
// still take the per-calendar run lock so they cannot race the worker.
type runtime struct {
	cfg   *config.Config
	reg   *registry.Registry
	store calendar.EventStore
	loc   *time.Location
	locks *lock.RunLock
	close func()
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.CalendarTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CALENDAR_TIMEZONE %q: %w", cfg.CalendarTimezone, err)
	}

	reg, err := registry.Load(cfg.TasksFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks file: %w", err)
	}

	store, closeStore, err := newEventStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize calendar backend: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	return &runtime{
		cfg:   cfg,
		reg:   reg,
		store: store,
		loc:   loc,
		locks: lock.NewRunLock(redisClient, 0),
		close: func() {
			closeStore()
			_ = redisClient.Close()
		},
	}, nil
}

// withRunLock holds the per-calendar run lock for the duration of fn.
func (rt *runtime) withRunLock(ctx context.Context, fn func() error) error {
	handle, err := rt.locks.Acquire(ctx, rt.cfg.CalendarID)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return fmt.Errorf("another scheduling run is in progress for calendar %q", rt.cfg.CalendarID)
		}
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer func() {
		_ = handle.Release(ctx)
	}()
	return fn()
}

func newEventStore(cfg *config.Config) (calendar.EventStore, func(), error) {
	switch cfg.CalendarBackend {
	case config.BackendGoogle:
		client, err := calendar.NewGoogleClient(calendar.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
			Timezone:     cfg.CalendarTimezone,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case config.BackendPostgres:
		store, err := calendar.NewPostgresStore(cfg.DatabaseURL, cfg.CalendarTimezone)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown calendar backend %q", cfg.CalendarBackend)
	}
}

// scheduler builds a Scheduler over the given store, which lets the plan and
// export commands substitute a dry-run wrapper.
func (rt *runtime) scheduler(store calendar.EventStore) (*scheduler.Scheduler, error) {
	opts := scheduler.Options{
		DayEnd:      rt.cfg.DayEnd,
		StepMinutes: rt.cfg.SlotStepMinutes,
	}
	return scheduler.New(store, rt.reg, rt.cfg.CalendarID, opts, zap.NewNop())
}

// window resolves the --start and --days flags, applying defaults.
func (rt *runtime) window(startFlag string, daysFlag int) (time.Time, int, error) {
	now := time.Now().In(rt.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, rt.loc)
	if startFlag != "" {
		parsed, err := time.ParseInLocation("2006-01-02", startFlag, rt.loc)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("invalid --start %q, expected YYYY-MM-DD", startFlag)
		}
		start = parsed
	}

	days := daysFlag
	if days == 0 {
		days = rt.cfg.ScheduleDays
	}
	if days < 1 {
		return time.Time{}, 0, fmt.Errorf("--days must be positive")
	}
	return start, days, nil
}

func printDecisions(decisions map[string][]models.Decision, start time.Time, days int) {
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		dayDecisions := decisions[day]
		fmt.Printf("%s:\n", day)
		if len(dayDecisions) == 0 {
			fmt.Println("  (no tasks)")
			continue
		}
		for _, d := range dayDecisions {
			if d.Placed() && d.ScheduledStart != nil && d.ScheduledEnd != nil {
				fmt.Printf("  %s  %s-%s  %s (%s)\n",
					d.TaskName,
					d.ScheduledStart.Format("15:04"),
					d.ScheduledEnd.Format("15:04"),
					d.Status, d.Reason)
			} else {
				fmt.Printf("  %s  skipped (%s)\n", d.TaskName, d.Reason)
			}
		}
	}
}
