package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
	"github.com/pmarkell/routine-scheduler/internal/lock"
	"github.com/pmarkell/routine-scheduler/internal/queue"
	"github.com/pmarkell/routine-scheduler/internal/registry"
	"github.com/pmarkell/routine-scheduler/internal/scheduler"
)

// lockRetryDelay is how long a job waits before retrying when another run
// holds the calendar lock.
const lockRetryDelay = 30 * time.Second

// RunProcessor executes schedule and clear jobs from the queue. Each job
// builds a scheduler bound to the job's calendar, takes the per-calendar run
// lock, and commits day by day.
type RunProcessor struct {
	store    calendar.EventStore
	registry *registry.Registry
	opts     scheduler.Options
	locks    *lock.RunLock
	jobQueue queue.JobQueue // for re-enqueueing jobs with delays
	logger   *zap.Logger
}

// NewRunProcessor creates a run processor. locks may be nil, in which case
// runs are not serialized.
func NewRunProcessor(
	store calendar.EventStore,
	reg *registry.Registry,
	opts scheduler.Options,
	locks *lock.RunLock,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
) *RunProcessor {
	return &RunProcessor{
		store:    store,
		registry: reg,
		opts:     opts,
		locks:    locks,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ProcessJob processes a queue message based on its job type.
func (p *RunProcessor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if !job.ShouldProcess() {
		p.logger.Info("job_not_ready",
			zap.String("job_id", job.ID.String()),
			zap.Timep("not_before", job.NotBefore))
		if ackErr := msg.Ack(); ackErr != nil {
			p.logger.Warn("job_ack_failed", zap.Error(ackErr))
		}
		return nil
	}

	switch job.Type {
	case queue.JobTypeScheduleRange, queue.JobTypeClearRange:
		if err := p.runJob(ctx, job); err != nil {
			return p.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			p.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// runJob executes a single schedule or clear run under the calendar lock.
func (p *RunProcessor) runJob(ctx context.Context, job *queue.Job) error {
	start, err := job.Start()
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", job.StartDate, err)
	}
	if job.Days <= 0 {
		return fmt.Errorf("invalid day count %d", job.Days)
	}

	if p.locks != nil {
		handle, err := p.locks.Acquire(ctx, job.CalendarID)
		if err != nil {
			return fmt.Errorf("calendar %s: %w", job.CalendarID, err)
		}
		defer func() {
			if releaseErr := handle.Release(ctx); releaseErr != nil {
				p.logger.Warn("run_lock_release_failed",
					zap.String("calendar_id", job.CalendarID),
					zap.Error(releaseErr))
			}
		}()
	}

	sched, err := scheduler.New(p.store, p.registry, job.CalendarID, p.opts, p.logger)
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}

	switch job.Type {
	case queue.JobTypeScheduleRange:
		decisions, err := sched.ScheduleRange(ctx, start, job.Days, job.AllowReschedule)
		if err != nil {
			return err
		}
		p.logger.Info("schedule_run_completed",
			zap.String("job_id", job.ID.String()),
			zap.String("calendar_id", job.CalendarID),
			zap.String("start_date", job.StartDate),
			zap.Int("days", len(decisions)))
		return nil

	case queue.JobTypeClearRange:
		removed, err := sched.Clear(ctx, start, job.Days)
		if err != nil {
			return err
		}
		p.logger.Info("clear_run_completed",
			zap.String("job_id", job.ID.String()),
			zap.String("calendar_id", job.CalendarID),
			zap.String("start_date", job.StartDate),
			zap.Int("removed", removed))
		return nil
	}

	return fmt.Errorf("unknown job type: %s", job.Type)
}

// handleJobError decides between delayed re-enqueue, immediate requeue, and
// the DLQ for a failed job.
func (p *RunProcessor) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	// A held lock means another run is in flight. Back off instead of
	// burning retries.
	if errors.Is(err, lock.ErrNotAcquired) {
		notBefore := time.Now().Add(lockRetryDelay)
		delayed := *job
		delayed.NotBefore = &notBefore

		if ackErr := msg.Ack(); ackErr != nil {
			p.logger.Warn("job_ack_failed", zap.Error(ackErr))
		}
		if p.jobQueue != nil {
			if enqueueErr := p.jobQueue.Enqueue(ctx, &delayed); enqueueErr != nil {
				return fmt.Errorf("lock held, failed to re-enqueue: %w", enqueueErr)
			}
			p.logger.Info("job_deferred_lock_held",
				zap.String("job_id", job.ID.String()),
				zap.Time("not_before", notBefore))
			return nil
		}
		return fmt.Errorf("lock held (job %s): %w", job.ID, err)
	}

	if job.CanRetry() {
		job.IncrementRetry()
		p.logger.Warn("job_failed_will_retry",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.Error(err))
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	p.logger.Error("job_failed_dead_lettered",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err))
	if nackErr := msg.Nack(false); nackErr != nil {
		p.logger.Warn("job_nack_failed", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
