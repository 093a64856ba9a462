package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/auth"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/database/mock"
)

// Shared test fixtures. The office point and policies mirror the default
// configuration; embeddings are tiny unit vectors so cosine distances are
// exact.
var (
	testOffice = attendance.GeoPoint{Lat: 28.4145947, Long: 77.354079}

	aliceEmbedding = []float32{1, 0, 0}
	bobEmbedding   = []float32{0, 1, 0}
)

func testPresencePolicy() attendance.Policy {
	return attendance.Policy{
		Office:          testOffice,
		RadiusMeters:    100,
		MinWifiStrength: -80,
		AllowAutoBind:   true,
	}
}

func testAttendancePolicy() attendance.Policy {
	return attendance.Policy{
		Office:          testOffice,
		RadiusMeters:    4,
		RequiredWifiPct: 80,
		AllowAutoBind:   true,
	}
}

func testEnrollmentPolicy() attendance.Policy {
	return attendance.Policy{
		Office:          testOffice,
		RadiusMeters:    4,
		RequiredWifiPct: 80,
	}
}

// stubExtractor returns a fixed embedding or error and counts calls.
type stubExtractor struct {
	embedding []float32
	err       error
	calls     int
}

func (s *stubExtractor) Extract(ctx context.Context, imageData []byte) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

func testResolver() *attendance.Resolver {
	return attendance.NewResolver(0.40, 0.05)
}

func testProbe() string {
	return base64.StdEncoding.EncodeToString([]byte("probe-image-bytes"))
}

func seedAlice(dir *mock.MockDirectory) {
	hash, _ := auth.HashPassword("alice-pass")
	dir.AddEmployee(database.StoredEmployee{
		ID:             "alice-id",
		Email:          "alice@example.com",
		FullName:       "Alice Smith",
		EmployeeID:     "E-100",
		Designation:    "Engineer",
		Department:     "Platform",
		HashedPassword: hash,
		Embedding:      aliceEmbedding,
		Dim:            3,
		CreatedAt:      time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	})
}

func seedBob(dir *mock.MockDirectory) {
	hash, _ := auth.HashPassword("bob-pass")
	dir.AddEmployee(database.StoredEmployee{
		ID:             "bob-id",
		Email:          "bob@example.com",
		FullName:       "Bob Jones",
		HashedPassword: hash,
		Embedding:      bobEmbedding,
		Dim:            3,
		CreatedAt:      time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC),
	})
}

// goodClaim is a presence claim inside the strict radius on strong wifi.
func goodClaim() presenceClaim {
	return presenceClaim{
		Image: testProbe(),
		Lat:   testOffice.Lat,
		Long:  testOffice.Long,
		Wifi:  attendance.WifiSnapshot{SSID: "office", Strength: -50},
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", recorder.Body.String(), err)
	}
	return result
}
