package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/database"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
	analyticsDays   = 7
)

// LogsHandler serves attendance history and the weekly analytics summary.
type LogsHandler struct {
	directory database.DirectoryReader
	log       database.LogReader
	now       func() time.Time
}

// NewLogsHandler creates a logs handler.
func NewLogsHandler(directory database.DirectoryReader, log database.LogReader) *LogsHandler {
	return &LogsHandler{
		directory: directory,
		log:       log,
		now:       time.Now,
	}
}

// lookup resolves the path parameter to an employee. An address with an
// "@" is looked up as an email; anything else is treated as a full name
// ("alice-smith" finds "Alice Smith") and must match exactly one
// enrolled employee.
func (h *LogsHandler) lookup(r *http.Request) (*database.StoredEmployee, error) {
	key := chi.URLParam(r, "email")
	if strings.Contains(key, "@") {
		emp, err := h.directory.GetByEmail(r.Context(), key)
		if err != nil {
			return nil, err
		}
		if emp == nil {
			return nil, goerr.Wrap(attendance.ErrIdentityNotFound, "no enrolled identity for email")
		}
		return emp, nil
	}

	matches, err := h.directory.FindByName(r.Context(), key)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, goerr.Wrap(attendance.ErrIdentityNotFound, "no enrolled identity for name")
	case 1:
		return &matches[0], nil
	default:
		return nil, goerr.Wrap(attendance.ErrIdentityNotFound, "name matches multiple employees",
			goerr.V("matches", len(matches)))
	}
}

// List returns the recent attendance events for an identity, most recent
// first. The limit query parameter caps the page size.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	emp, err := h.lookup(r)
	if err != nil {
		respondFlowError(w, r, "logs", err)
		return
	}

	limit := defaultLogLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	events, err := h.log.ListByIdentity(r.Context(), emp.ID, limit)
	if err != nil {
		respondFlowError(w, r, "logs", err)
		return
	}
	if events == nil {
		events = []attendance.AttendanceEvent{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"email":  emp.Email,
		"count":  len(events),
		"events": events,
	})
}

type dailyHours struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

// Analytics aggregates worked hours over the trailing seven days from
// check-out durations, along with the identity's current state.
func (h *LogsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	emp, err := h.lookup(r)
	if err != nil {
		respondFlowError(w, r, "analytics", err)
		return
	}

	now := h.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	since := today.AddDate(0, 0, -(analyticsDays - 1))

	checkOuts, err := h.log.CheckOutsSince(r.Context(), emp.ID, since)
	if err != nil {
		respondFlowError(w, r, "analytics", err)
		return
	}

	hoursByDay := make(map[string]float64)
	for _, e := range checkOuts {
		if e.DurationHours == nil {
			continue
		}
		day := e.Timestamp.In(now.Location()).Format("2006-01-02")
		hoursByDay[day] += *e.DurationHours
	}

	breakdown := make([]dailyHours, 0, analyticsDays)
	var weekTotal float64
	for i := 0; i < analyticsDays; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		hours := hoursByDay[day]
		weekTotal += hours
		breakdown = append(breakdown, dailyHours{Date: day, Hours: hours})
	}

	status := "OUT"
	lastEvent, err := h.log.LastEvent(r.Context(), emp.ID)
	if err != nil {
		respondFlowError(w, r, "analytics", err)
		return
	}
	if lastEvent != nil && lastEvent.Type == attendance.CheckIn {
		status = "IN"
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"email":            emp.Email,
		"current_status":   status,
		"today_hours":      hoursByDay[today.Format("2006-01-02")],
		"week_total_hours": weekTotal,
		"daily_breakdown":  breakdown,
	})
}
