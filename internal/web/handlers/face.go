package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/auth"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/faceid"
	"github.com/officeflow/attendance/internal/logging"
	"github.com/officeflow/attendance/internal/metrics"
)

// FaceHandler handles face re-enrollment.
type FaceHandler struct {
	directory database.DirectoryWriter
	extractor faceid.Extractor
	gate      *attendance.TrustGate
	index     Indexer
	policy    attendance.Policy
}

// NewFaceHandler creates a face re-enrollment handler.
func NewFaceHandler(directory database.DirectoryWriter, extractor faceid.Extractor, gate *attendance.TrustGate, index Indexer, policy attendance.Policy) *FaceHandler {
	return &FaceHandler{
		directory: directory,
		extractor: extractor,
		gate:      gate,
		index:     index,
		policy:    policy,
	}
}

type updateFaceRequest struct {
	presenceClaim
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Update replaces the enrolled embedding for an identity. The caller must
// re-authenticate with their password and pass the strict on-site trust
// gate; the device binding is never changed by this flow.
func (h *FaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateFaceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" || req.Image == "" {
		respondError(w, http.StatusBadRequest, "email, password and image are required")
		return
	}

	emp, err := h.directory.GetByEmail(r.Context(), req.Email)
	if err != nil {
		respondFlowError(w, r, "face_update", err)
		return
	}
	if emp == nil || !auth.CheckPassword(emp.HashedPassword, req.Password) {
		// The same rejection for unknown email and wrong password, so the
		// endpoint cannot be used to probe enrollment.
		respondFlowError(w, r, "face_update", goerr.Wrap(attendance.ErrCredentialInvalid, "password re-authentication failed"))
		return
	}
	identity := emp.Identity()

	if _, err := h.gate.Evaluate(req.trustContext(), h.policy, &identity); err != nil {
		respondFlowError(w, r, "face_update", err)
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
		respondFlowError(w, r, "face_update", err)
		return
	}

	if err := h.directory.ReplaceEmbedding(r.Context(), emp.Email, embedding); err != nil {
		respondFlowError(w, r, "face_update", err)
		return
	}

	if h.index != nil {
		identity.Embedding = embedding
		h.index.Add(identity)
	}

	metrics.VerificationsTotal.WithLabelValues("face_update", "accepted").Inc()
	logging.From(r.Context()).Info("face re-enrolled", "email", sanitizeForLog(emp.Email))
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "face updated",
		"email":   emp.Email,
	})
}
