package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/faceid"
	"github.com/officeflow/attendance/internal/logging"
	"github.com/officeflow/attendance/internal/metrics"
)

// candidateK bounds the number of index candidates fed to the resolver.
const candidateK = 10

// CandidateSource narrows 1:N resolution to the nearest enrolled
// embeddings. Satisfied by database.CandidateIndex.
type CandidateSource interface {
	Candidates(query []float32, k int) attendance.Population
	Len() int
}

// AttendanceHandler handles the 1:N smart attendance flow: the face is
// the identity claim, no session token required.
type AttendanceHandler struct {
	directory database.DirectoryWriter
	log       database.LogWriter
	extractor faceid.Extractor
	resolver  *attendance.Resolver
	gate      *attendance.TrustGate
	sequencer *attendance.Sequencer
	locker    *attendance.IdentityLocker
	index     CandidateSource
	policy    attendance.Policy
	now       func() time.Time
}

// NewAttendanceHandler creates a smart attendance handler. index may be
// nil, in which case resolution scans the full directory population.
func NewAttendanceHandler(
	directory database.DirectoryWriter,
	log database.LogWriter,
	extractor faceid.Extractor,
	resolver *attendance.Resolver,
	gate *attendance.TrustGate,
	sequencer *attendance.Sequencer,
	locker *attendance.IdentityLocker,
	index CandidateSource,
	policy attendance.Policy,
) *AttendanceHandler {
	return &AttendanceHandler{
		directory: directory,
		log:       log,
		extractor: extractor,
		resolver:  resolver,
		gate:      gate,
		sequencer: sequencer,
		locker:    locker,
		index:     index,
		policy:    policy,
		now:       time.Now,
	}
}

type smartRequest struct {
	presenceClaim
	IntendedType string `json:"intended_type"`
	HintEmail    string `json:"hint_email"`
	Address      string `json:"address"`
}

// Record runs the full smart attendance pipeline: WiFi pre-gate, face
// extraction, 1:N identification, trust gate, sequencing, and the
// append to the attendance log.
func (h *AttendanceHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req smartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	// WiFi quality gates before the expensive extraction call.
	if err := h.gate.PreCheckWifi(req.trustContext(), h.policy); err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}

	probe, err := faceid.NormalizeProbe(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid image payload")
		return
	}

	start := time.Now()
	embedding, err := h.extractor.Extract(r.Context(), probe)
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}

	match, err := h.resolve(r, embedding, req.HintEmail)
	if err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}

	emp, err := h.directory.GetByID(r.Context(), match.IdentityID)
	if err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}
	if emp == nil {
		respondFlowError(w, r, "smart", goerr.Wrap(attendance.ErrIdentityNotFound, "resolved identity missing from directory"))
		return
	}
	identity := emp.Identity()

	decision, err := h.gate.Evaluate(req.trustContext(), h.policy, &identity)
	if err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}

	// Serialize the read-decide-append sequence per identity.
	h.locker.Lock(identity.ID)
	defer h.locker.Unlock(identity.ID)

	now := h.now()
	lastEvent, err := h.log.LastEvent(r.Context(), identity.ID)
	if err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}
	lastCheckIn := lastEvent
	if lastEvent != nil && lastEvent.Type != attendance.CheckIn {
		lastCheckIn, err = h.log.LastCheckIn(r.Context(), identity.ID)
		if err != nil {
			respondFlowError(w, r, "smart", err)
			return
		}
	}

	transition, err := h.sequencer.Next(lastEvent, lastCheckIn, attendance.EventType(req.IntendedType), now)
	if err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}

	event := &attendance.AttendanceEvent{
		ID:             uuid.New().String(),
		IdentityID:     identity.ID,
		Email:          emp.Email,
		FullName:       emp.FullName,
		Timestamp:      now,
		Type:           transition.Type,
		Geo:            attendance.GeoPoint{Lat: req.Lat, Long: req.Long},
		Wifi:           req.Wifi,
		DistanceMeters: decision.DistanceMeters,
		FaceDistance:   match.Distance,
		Address:        req.Address,
		DurationHours:  transition.DurationHours,
	}
	if err := h.log.Append(r.Context(), event); err != nil {
		respondFlowError(w, r, "smart", err)
		return
	}

	deviceBound := emp.DeviceID != ""
	if decision.AutoBind {
		if err := h.directory.BindDevice(r.Context(), emp.Email, req.DeviceID); err != nil {
			// The event is already recorded; binding retries on the next claim.
			logging.From(r.Context()).Error("device binding failed", "email", sanitizeForLog(emp.Email), "error", err)
		} else {
			deviceBound = true
			metrics.DevicesBound.Inc()
		}
	}

	metrics.VerificationsTotal.WithLabelValues("smart", "accepted").Inc()
	metrics.EventsRecorded.WithLabelValues(string(transition.Type)).Inc()
	logging.From(r.Context()).Info("attendance recorded",
		"email", sanitizeForLog(emp.Email),
		"type", string(transition.Type),
		"face_distance", match.Distance,
		"distance_m", decision.DistanceMeters)

	resp := map[string]any{
		"email":            emp.Email,
		"full_name":        emp.FullName,
		"type":             transition.Type,
		"timestamp":        event.Timestamp,
		"face_distance":    match.Distance,
		"distance_meters":  decision.DistanceMeters,
		"wifi_quality_pct": decision.WifiQualityPct,
		"device_bound":     deviceBound,
	}
	if transition.DurationHours != nil {
		resp["duration_hours"] = *transition.DurationHours
	}
	respondJSON(w, http.StatusCreated, resp)
}

// resolve identifies the probe. A hint email loads that identity for the
// resolver's fast path; the candidate index bounds the scan when built,
// falling back to the full directory stream otherwise.
func (h *AttendanceHandler) resolve(r *http.Request, embedding []float32, hintEmail string) (attendance.MatchResult, error) {
	var hint *attendance.Identity
	if hintEmail != "" {
		emp, err := h.directory.GetByEmail(r.Context(), hintEmail)
		if err != nil {
			return attendance.MatchResult{}, err
		}
		if emp != nil && len(emp.Embedding) > 0 {
			id := emp.Identity()
			hint = &id
		}
	}

	var population attendance.Population
	if h.index != nil && h.index.Len() > 0 {
		population = h.index.Candidates(embedding, candidateK)
	} else {
		var err error
		population, err = h.directory.Population(r.Context())
		if err != nil {
			return attendance.MatchResult{}, err
		}
	}

	start := time.Now()
	match, err := h.resolver.Resolve(r.Context(), embedding, hint, population)
	metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	metrics.ResolveScanSize.Observe(float64(match.Scanned))
	return match, err
}
