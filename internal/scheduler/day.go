package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pmarkell/routine-scheduler/internal/models"
	"go.uber.org/zap"
)

// ScheduleDay places every task that recurs on the given date, producing one
// Decision per applicable task. The day's events are fetched once up front;
// the working set is then kept current in memory as events are created, so
// later tasks the same day see earlier placements without re-querying the
// store.
//
// A store failure (list or create) aborts the day with an error. Events
// already created that day remain in place; no Decisions are fabricated for
// tasks not yet attempted. The Clearer is the reconciliation path.
func (s *Scheduler) ScheduleDay(ctx context.Context, date time.Time, allowReschedule bool) ([]models.Decision, error) {
	dayStart, nextDay := dayBounds(date)

	events, err := s.store.ListEvents(ctx, s.calendarID, dayStart, nextDay)
	if err != nil {
		return nil, fmt.Errorf("day %s: failed to list events: %w", dayStart.Format("2006-01-02"), err)
	}

	owned := s.registry.Names()
	decisions := make([]models.Decision, 0, s.registry.Len())

	for _, task := range s.registry.Tasks() {
		if !task.RunsOn(dayStart) {
			continue
		}

		nominalStart, nominalEnd, err := task.Nominal(dayStart)
		if err != nil {
			return nil, err
		}

		if !Conflicts(events, nominalStart, nominalEnd, owned) {
			created, err := s.store.CreateEvent(ctx, s.calendarID, task.Name, nominalStart, nominalEnd)
			if err != nil {
				return nil, fmt.Errorf("day %s: failed to create event for %q: %w", dayStart.Format("2006-01-02"), task.Name, err)
			}
			events = append(events, *created)
			decisions = append(decisions, placedDecision(task.Name, models.DecisionScheduled, models.ReasonOriginalSlot, nominalStart, nominalEnd))
			s.logger.Info("task_scheduled",
				zap.String("task", task.Name),
				zap.Time("start", nominalStart),
			)
			continue
		}

		if !allowReschedule {
			decisions = append(decisions, skippedDecision(task.Name, models.ReasonRescheduleDisabled))
			s.logger.Info("task_skipped",
				zap.String("task", task.Name),
				zap.String("reason", string(models.ReasonRescheduleDisabled)),
			)
			continue
		}

		duration := time.Duration(task.DurationMinutes) * time.Minute
		slotStart, slotEnd, ok := FindSlot(events, nominalStart, duration, s.dayEnd(dayStart), s.step, owned)
		if !ok {
			decisions = append(decisions, skippedDecision(task.Name, models.ReasonNoFreeSlot))
			s.logger.Info("task_skipped",
				zap.String("task", task.Name),
				zap.String("reason", string(models.ReasonNoFreeSlot)),
			)
			continue
		}

		created, err := s.store.CreateEvent(ctx, s.calendarID, task.Name, slotStart, slotEnd)
		if err != nil {
			return nil, fmt.Errorf("day %s: failed to create event for %q: %w", dayStart.Format("2006-01-02"), task.Name, err)
		}
		events = append(events, *created)
		decisions = append(decisions, placedDecision(task.Name, models.DecisionRescheduled, models.ReasonRescheduled, slotStart, slotEnd))
		s.logger.Info("task_rescheduled",
			zap.String("task", task.Name),
			zap.Time("nominal_start", nominalStart),
			zap.Time("start", slotStart),
		)
	}

	return decisions, nil
}

func placedDecision(name string, status models.DecisionStatus, reason models.DecisionReason, start, end time.Time) models.Decision {
	return models.Decision{
		TaskName:       name,
		Status:         status,
		ScheduledStart: &start,
		ScheduledEnd:   &end,
		Reason:         reason,
	}
}

func skippedDecision(name string, reason models.DecisionReason) models.Decision {
	return models.Decision{
		TaskName: name,
		Status:   models.DecisionSkipped,
		Reason:   reason,
	}
}
