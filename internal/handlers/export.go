package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/pmarkell/routine-scheduler/internal/calendar"
	"github.com/pmarkell/routine-scheduler/internal/scheduler"
)

const icsProductID = "-//routine-scheduler//EN"

// ExportICS renders the planned schedule for a date range as an iCalendar
// feed. The plan is computed against a dry-run store, so exporting never
// writes to the calendar backend.
func (h *ScheduleHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	start, days, err := h.window(r.URL.Query().Get("start_date"), queryDays(r))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	dryRun := calendar.NewDryRunStore(h.store)
	sched, err := scheduler.New(dryRun, h.registry, h.calendarID, h.opts, h.logger)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}

	decisions, err := sched.ScheduleRange(r.Context(), start, days, true)
	if err != nil {
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "calendar backend error: "+err.Error())
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	now := time.Now().UTC()
	for day, dayDecisions := range decisions {
		for i, d := range dayDecisions {
			if !d.Placed() || d.ScheduledStart == nil || d.ScheduledEnd == nil {
				continue
			}
			ev := cal.AddEvent(fmt.Sprintf("%s-%d@routine-scheduler", day, i))
			ev.SetDtStampTime(now)
			ev.SetStartAt(*d.ScheduledStart)
			ev.SetEndAt(*d.ScheduledEnd)
			ev.SetSummary(d.TaskName)
		}
	}

	h.logger.Info("ics_export",
		zap.String("start_date", start.Format("2006-01-02")),
		zap.Int("days", days))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="routine.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}

// queryDays parses the days query parameter, returning 0 when absent so the
// normal default applies.
func queryDays(r *http.Request) int {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return days
}
