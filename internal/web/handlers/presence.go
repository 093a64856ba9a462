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
	"github.com/officeflow/attendance/internal/web/middleware"
)

// presenceClaim is the request body shared by the verification flows.
type presenceClaim struct {
	Image    string                  `json:"image"`
	Lat      float64                 `json:"lat"`
	Long     float64                 `json:"long"`
	Wifi     attendance.WifiSnapshot `json:"wifi"`
	DeviceID string                  `json:"device_id"`
}

func (c *presenceClaim) trustContext() attendance.TrustContext {
	return attendance.TrustContext{
		Geo:      attendance.GeoPoint{Lat: c.Lat, Long: c.Long},
		Wifi:     c.Wifi,
		DeviceID: c.DeviceID,
	}
}

type presenceRequest struct {
	presenceClaim
	RequestedType string `json:"requested_type"`
	Address       string `json:"address"`
}

// PresenceHandler handles 1:1 presence verification against the
// authenticated identity. An accepted claim records an attendance
// event, same as the smart flow but with the identity asserted by the
// session instead of resolved from the face.
type PresenceHandler struct {
	directory database.DirectoryWriter
	log       database.LogWriter
	extractor faceid.Extractor
	resolver  *attendance.Resolver
	gate      *attendance.TrustGate
	sequencer *attendance.Sequencer
	locker    *attendance.IdentityLocker
	policy    attendance.Policy
	now       func() time.Time
}

// NewPresenceHandler creates a presence verification handler.
func NewPresenceHandler(
	directory database.DirectoryWriter,
	log database.LogWriter,
	extractor faceid.Extractor,
	resolver *attendance.Resolver,
	gate *attendance.TrustGate,
	sequencer *attendance.Sequencer,
	locker *attendance.IdentityLocker,
	policy attendance.Policy,
) *PresenceHandler {
	return &PresenceHandler{
		directory: directory,
		log:       log,
		extractor: extractor,
		resolver:  resolver,
		gate:      gate,
		sequencer: sequencer,
		locker:    locker,
		policy:    policy,
		now:       time.Now,
	}
}

// Verify confirms that the authenticated employee is physically present
// and records the resulting attendance event: the probe face must match
// their enrolled embedding and the claim must pass the trust gate.
func (h *PresenceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Image == "" {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}

	email := middleware.AuthenticatedEmail(r.Context())
	emp, err := h.directory.GetByEmail(r.Context(), email)
	if err != nil {
		respondFlowError(w, r, "presence", err)
		return
	}
	if emp == nil {
		respondFlowError(w, r, "presence", goerr.Wrap(attendance.ErrIdentityNotFound, "authenticated identity not enrolled"))
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
		respondFlowError(w, r, "presence", err)
		return
	}

	identity := emp.Identity()
	match := h.resolver.Verify(embedding, &identity)
	if !match.Matched {
		respondFlowError(w, r, "presence", goerr.Wrap(attendance.ErrFaceMismatch, "probe does not match enrolled face",
			goerr.V("face_distance", match.Distance),
			goerr.V("threshold", h.resolver.Threshold())))
		return
	}

	decision, err := h.gate.Evaluate(req.trustContext(), h.policy, &identity)
	if err != nil {
		respondFlowError(w, r, "presence", err)
		return
	}

	// Serialize the read-decide-append sequence per identity.
	h.locker.Lock(identity.ID)
	defer h.locker.Unlock(identity.ID)

	now := h.now()
	lastEvent, err := h.log.LastEvent(r.Context(), identity.ID)
	if err != nil {
		respondFlowError(w, r, "presence", err)
		return
	}
	lastCheckIn := lastEvent
	if lastEvent != nil && lastEvent.Type != attendance.CheckIn {
		lastCheckIn, err = h.log.LastCheckIn(r.Context(), identity.ID)
		if err != nil {
			respondFlowError(w, r, "presence", err)
			return
		}
	}

	transition, err := h.sequencer.Next(lastEvent, lastCheckIn, attendance.EventType(req.RequestedType), now)
	if err != nil {
		respondFlowError(w, r, "presence", err)
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
		respondFlowError(w, r, "presence", err)
		return
	}

	if decision.AutoBind {
		if err := h.directory.BindDevice(r.Context(), emp.Email, req.DeviceID); err != nil {
			// The event is already recorded; binding retries on the next claim.
			logging.From(r.Context()).Error("device binding failed", "email", sanitizeForLog(emp.Email), "error", err)
		} else {
			metrics.DevicesBound.Inc()
		}
	}

	metrics.VerificationsTotal.WithLabelValues("presence", "accepted").Inc()
	metrics.EventsRecorded.WithLabelValues(string(transition.Type)).Inc()
	logging.From(r.Context()).Info("presence verified",
		"email", sanitizeForLog(emp.Email),
		"type", string(transition.Type),
		"face_distance", match.Distance,
		"distance_m", decision.DistanceMeters)

	resp := map[string]any{
		"verified":         true,
		"email":            emp.Email,
		"full_name":        emp.FullName,
		"type":             transition.Type,
		"timestamp":        event.Timestamp,
		"face_distance":    match.Distance,
		"distance_meters":  decision.DistanceMeters,
		"wifi_quality_pct": decision.WifiQualityPct,
	}
	if transition.DurationHours != nil {
		resp["duration_hours"] = *transition.DurationHours
	}
	respondJSON(w, http.StatusCreated, resp)
}
