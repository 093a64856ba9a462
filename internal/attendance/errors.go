package attendance

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// Rejection kinds. Each is a locally detected, non-retryable, user-facing
// failure; callers match them with errors.Is. Concrete occurrences are
// produced by goerr.Wrap with the measured values attached so diagnostics
// (actual distance, actual signal quality) survive to the caller.
var (
	// ErrNoFaceDetected means the extraction model found no face in the
	// probe image. Distinct from a failed match.
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrIdentityNotResolved means the 1:N scan found no enrolled identity
	// within the match threshold.
	ErrIdentityNotResolved = errors.New("face not recognized")

	// ErrIdentityAmbiguous means two enrolled identities were both within
	// threshold of the probe and too close to separate.
	ErrIdentityAmbiguous = errors.New("face matches multiple enrolled identities")

	// ErrIdentityNotFound means a claimed identity does not exist in the
	// directory.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrFaceMismatch means a 1:1 verification against a claimed identity
	// failed the distance threshold.
	ErrFaceMismatch = errors.New("face verification failed")

	// ErrGeofenceViolation means the claim is outside the policy radius.
	ErrGeofenceViolation = errors.New("outside office geofence")

	// ErrWifiQualityTooLow means the measured signal quality is below the
	// policy requirement.
	ErrWifiQualityTooLow = errors.New("wifi signal too weak")

	// ErrWifiIdentityMismatch means the reported SSID or BSSID differs from
	// the office network.
	ErrWifiIdentityMismatch = errors.New("wrong wifi network")

	// ErrDeviceMismatch means the claim's device differs from the bound one.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrSequence means the requested transition would break the
	// check-in/check-out alternation invariant.
	ErrSequence = errors.New("attendance sequence error")

	// ErrCredentialInvalid means password re-authentication failed.
	ErrCredentialInvalid = errors.New("invalid credentials")
)

// IsRejection reports whether err is one of the user-facing rejection kinds,
// as opposed to an internal failure (repository or extraction service
// unavailable) which is retryable and must not leak detail.
func IsRejection(err error) bool {
	for _, kind := range []error{
		ErrNoFaceDetected,
		ErrIdentityNotResolved,
		ErrIdentityAmbiguous,
		ErrIdentityNotFound,
		ErrFaceMismatch,
		ErrGeofenceViolation,
		ErrWifiQualityTooLow,
		ErrWifiIdentityMismatch,
		ErrDeviceMismatch,
		ErrSequence,
		ErrCredentialInvalid,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// ErrorValues extracts the structured values attached to err, if any.
// Used for logging and for rejection diagnostics in API responses.
func ErrorValues(err error) map[string]any {
	var ge *goerr.Error
	if errors.As(err, &ge) {
		return ge.Values()
	}
	return nil
}
