package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/database/mock"
)

func logsSetup() (*LogsHandler, *mock.MockLog, *chi.Mux) {
	dir := mock.NewMockDirectory()
	seedAlice(dir)
	log := mock.NewMockLog()
	handler := NewLogsHandler(dir, log)

	r := chi.NewRouter()
	r.Get("/api/v1/logs/{email}", handler.List)
	r.Get("/api/v1/analytics/{email}", handler.Analytics)
	return handler, log, r
}

func getPath(t *testing.T, router *chi.Mux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func hoursPtr(h float64) *float64 { return &h }

func TestLogs_ListMostRecentFirst(t *testing.T) {
	_, log, router := logsSetup()
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	log.AddEvent(attendance.AttendanceEvent{
		ID: "evt-1", IdentityID: "alice-id", Timestamp: base, Type: attendance.CheckIn,
	})
	log.AddEvent(attendance.AttendanceEvent{
		ID: "evt-2", IdentityID: "alice-id", Timestamp: base.Add(8 * time.Hour),
		Type: attendance.CheckOut, DurationHours: hoursPtr(8),
	})

	recorder := getPath(t, router, "/api/v1/logs/alice@example.com")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["count"] != float64(2) {
		t.Errorf("expected 2 events, got %v", body["count"])
	}
	events := body["events"].([]any)
	first := events[0].(map[string]any)
	if first["id"] != "evt-2" {
		t.Errorf("expected most recent event first, got %v", first["id"])
	}
}

func TestLogs_LimitApplied(t *testing.T) {
	_, log, router := logsSetup()
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		eventType := attendance.CheckIn
		if i%2 == 1 {
			eventType = attendance.CheckOut
		}
		log.AddEvent(attendance.AttendanceEvent{
			IdentityID: "alice-id",
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
			Type:       eventType,
		})
	}

	recorder := getPath(t, router, "/api/v1/logs/alice@example.com?limit=3")

	body := decodeBody(t, recorder)
	if body["count"] != float64(3) {
		t.Errorf("expected 3 events with limit, got %v", body["count"])
	}
}

func TestLogs_LookupByName(t *testing.T) {
	_, log, router := logsSetup()
	log.AddEvent(attendance.AttendanceEvent{
		ID: "evt-1", IdentityID: "alice-id",
		Timestamp: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC), Type: attendance.CheckIn,
	})

	recorder := getPath(t, router, "/api/v1/logs/alice-smith")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for name lookup, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["email"] != "alice@example.com" {
		t.Errorf("name lookup resolved wrong identity: %v", body["email"])
	}
	if body["count"] != float64(1) {
		t.Errorf("expected 1 event, got %v", body["count"])
	}
}

func TestLogs_AmbiguousName(t *testing.T) {
	dir := mock.NewMockDirectory()
	seedAlice(dir)
	dir.AddEmployee(database.StoredEmployee{
		ID:       "alice2-id",
		Email:    "alice.smith@example.com",
		FullName: "Alice Smith",
	})
	handler := NewLogsHandler(dir, mock.NewMockLog())
	router := chi.NewRouter()
	router.Get("/api/v1/logs/{email}", handler.List)

	recorder := getPath(t, router, "/api/v1/logs/alice-smith")

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a name matching two employees, got %d", recorder.Code)
	}
}

func TestLogs_UnknownEmail(t *testing.T) {
	_, _, router := logsSetup()

	recorder := getPath(t, router, "/api/v1/logs/ghost@example.com")

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}

func TestLogs_EmptyHistory(t *testing.T) {
	_, _, router := logsSetup()

	recorder := getPath(t, router, "/api/v1/logs/alice@example.com")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	body := decodeBody(t, recorder)
	if body["count"] != float64(0) {
		t.Errorf("expected 0 events, got %v", body["count"])
	}
	if _, ok := body["events"].([]any); !ok {
		t.Error("events should be an empty array, not null")
	}
}

func TestAnalytics_WeeklyAggregation(t *testing.T) {
	handler, log, router := logsSetup()

	now := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC) // Monday
	handler.now = func() time.Time { return now }

	// Worked 8h today and 7.5h three days ago; a check-out 10 days ago
	// falls outside the window.
	log.AddEvent(attendance.AttendanceEvent{
		IdentityID: "alice-id", Type: attendance.CheckOut,
		Timestamp: now.Add(-time.Hour), DurationHours: hoursPtr(8),
	})
	log.AddEvent(attendance.AttendanceEvent{
		IdentityID: "alice-id", Type: attendance.CheckOut,
		Timestamp: now.AddDate(0, 0, -3), DurationHours: hoursPtr(7.5),
	})
	log.AddEvent(attendance.AttendanceEvent{
		IdentityID: "alice-id", Type: attendance.CheckOut,
		Timestamp: now.AddDate(0, 0, -10), DurationHours: hoursPtr(6),
	})

	recorder := getPath(t, router, "/api/v1/analytics/alice@example.com")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	body := decodeBody(t, recorder)
	if body["today_hours"] != 8.0 {
		t.Errorf("expected today_hours 8, got %v", body["today_hours"])
	}
	if body["week_total_hours"] != 15.5 {
		t.Errorf("expected week total 15.5, got %v", body["week_total_hours"])
	}
	breakdown := body["daily_breakdown"].([]any)
	if len(breakdown) != 7 {
		t.Fatalf("expected 7 daily entries, got %d", len(breakdown))
	}
	last := breakdown[6].(map[string]any)
	if last["date"] != "2026-08-31" || last["hours"] != 8.0 {
		t.Errorf("unexpected last day entry: %v", last)
	}
}

func TestAnalytics_CurrentStatus(t *testing.T) {
	handler, log, router := logsSetup()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	recorder := getPath(t, router, "/api/v1/analytics/alice@example.com")
	if decodeBody(t, recorder)["current_status"] != "OUT" {
		t.Error("identity with no events should be OUT")
	}

	log.AddEvent(attendance.AttendanceEvent{
		IdentityID: "alice-id", Type: attendance.CheckIn, Timestamp: now.Add(-time.Hour),
	})

	recorder = getPath(t, router, "/api/v1/analytics/alice@example.com")
	if decodeBody(t, recorder)["current_status"] != "IN" {
		t.Error("identity after check-in should be IN")
	}
}

func TestAnalytics_SkipsDurationlessCheckOuts(t *testing.T) {
	handler, log, router := logsSetup()
	now := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	log.AddEvent(attendance.AttendanceEvent{
		IdentityID: "alice-id", Type: attendance.CheckOut,
		Timestamp: now.Add(-2 * time.Hour), // no duration recorded
	})

	recorder := getPath(t, router, "/api/v1/analytics/alice@example.com")

	body := decodeBody(t, recorder)
	if body["week_total_hours"] != 0.0 {
		t.Errorf("durationless check-out must not contribute hours, got %v", body["week_total_hours"])
	}
}
