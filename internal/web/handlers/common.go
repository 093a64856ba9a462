package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/officeflow/attendance/internal/attendance"
	"github.com/officeflow/attendance/internal/logging"
	"github.com/officeflow/attendance/internal/metrics"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// decodeJSON decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// rejectionStatus maps a rejection kind to its HTTP status.
func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, attendance.ErrNoFaceDetected),
		errors.Is(err, attendance.ErrSequence):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrCredentialInvalid),
		errors.Is(err, attendance.ErrFaceMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, attendance.ErrGeofenceViolation),
		errors.Is(err, attendance.ErrWifiQualityTooLow),
		errors.Is(err, attendance.ErrWifiIdentityMismatch),
		errors.Is(err, attendance.ErrDeviceMismatch):
		return http.StatusForbidden
	case errors.Is(err, attendance.ErrIdentityNotFound),
		errors.Is(err, attendance.ErrIdentityNotResolved):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrIdentityAmbiguous):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// rejectionReason returns a stable label for metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, attendance.ErrNoFaceDetected):
		return "no_face"
	case errors.Is(err, attendance.ErrSequence):
		return "sequence"
	case errors.Is(err, attendance.ErrCredentialInvalid):
		return "credentials"
	case errors.Is(err, attendance.ErrFaceMismatch):
		return "face_mismatch"
	case errors.Is(err, attendance.ErrGeofenceViolation):
		return "geofence"
	case errors.Is(err, attendance.ErrWifiQualityTooLow):
		return "wifi_quality"
	case errors.Is(err, attendance.ErrWifiIdentityMismatch):
		return "wifi_network"
	case errors.Is(err, attendance.ErrDeviceMismatch):
		return "device"
	case errors.Is(err, attendance.ErrIdentityNotFound):
		return "not_found"
	case errors.Is(err, attendance.ErrIdentityNotResolved):
		return "not_resolved"
	case errors.Is(err, attendance.ErrIdentityAmbiguous):
		return "ambiguous"
	default:
		return "internal"
	}
}

// respondFlowError reports a flow failure. Rejections surface the reason
// and any measured values; internal failures are logged in full but the
// response stays generic.
func respondFlowError(w http.ResponseWriter, r *http.Request, flow string, err error) {
	if attendance.IsRejection(err) {
		metrics.RejectionsTotal.WithLabelValues(flow, rejectionReason(err)).Inc()
		metrics.VerificationsTotal.WithLabelValues(flow, "rejected").Inc()

		body := map[string]any{"error": rootMessage(err)}
		if values := attendance.ErrorValues(err); len(values) > 0 {
			body["details"] = values
		}
		respondJSON(w, rejectionStatus(err), body)
		return
	}

	metrics.VerificationsTotal.WithLabelValues(flow, "error").Inc()
	logging.From(r.Context()).Error("flow failed", "flow", flow, "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

// rootMessage returns the innermost sentinel message so responses carry a
// stable, user-facing phrase rather than the full wrap chain.
func rootMessage(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}
