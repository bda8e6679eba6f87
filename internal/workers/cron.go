package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/queue"
)

// AutoScheduler enqueues a schedule run on a cron cadence, typically once a
// day in the early morning so the day's tasks are placed before anyone looks
// at the calendar.
type AutoScheduler struct {
	c          *cron.Cron
	jobQueue   queue.JobQueue
	calendarID string
	days       int
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewAutoScheduler builds an AutoScheduler firing on spec (5-field cron
// syntax or a descriptor like @daily) in the given location. Both the cron
// cadence and the "today" each tick enqueues resolve in loc. days is the
// horizon each run covers.
func NewAutoScheduler(spec string, loc *time.Location, jobQueue queue.JobQueue, calendarID string, days int, logger *zap.Logger) (*AutoScheduler, error) {
	if days <= 0 {
		return nil, fmt.Errorf("invalid schedule horizon %d", days)
	}
	if loc == nil {
		loc = time.UTC
	}

	a := &AutoScheduler{
		jobQueue:   jobQueue,
		calendarID: calendarID,
		days:       days,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	a.c = cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	if _, err := a.c.AddFunc(spec, a.tick); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return a, nil
}

// Start begins firing ticks. It returns immediately.
func (a *AutoScheduler) Start() {
	a.c.Start()
}

// Stop stops the cron loop and waits for a running tick to finish.
func (a *AutoScheduler) Stop() {
	<-a.c.Stop().Done()
}

func (a *AutoScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	today := a.now().In(a.loc).Format("2006-01-02")
	job := queue.NewJob(queue.JobTypeScheduleRange, a.calendarID, today, a.days)
	if err := a.jobQueue.Enqueue(ctx, job); err != nil {
		a.logger.Error("auto_schedule_enqueue_failed",
			zap.String("start_date", today),
			zap.Error(err))
		return
	}
	a.logger.Info("auto_schedule_enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("start_date", today),
		zap.Int("days", a.days))
}
