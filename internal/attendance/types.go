// Package attendance implements the presence verification core: identity
// resolution against enrolled face embeddings, the multi-factor trust gate
// (geofence, WiFi, device binding), and the per-employee check-in/check-out
// state machine.
package attendance

import (
	"time"
)

// EventType is the kind of an attendance event.
type EventType string

const (
	CheckIn  EventType = "check-in"
	CheckOut EventType = "check-out"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == CheckIn || t == CheckOut
}

// Complement returns the opposite event type.
func (t EventType) Complement() EventType {
	if t == CheckIn {
		return CheckOut
	}
	return CheckIn
}

// GeoPoint is a location in decimal degrees.
type GeoPoint struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// WifiSnapshot captures the WiFi network the client reports being connected to.
type WifiSnapshot struct {
	SSID     string  `json:"ssid"`
	BSSID    string  `json:"bssid"`
	Strength float64 `json:"strength_dbm"` // signal strength in dBm, e.g. -55
}

// QualityPct converts the dBm signal strength to a bounded 0-100 quality
// percentage. -100 dBm maps to 0, -50 dBm and above to 100.
func (w WifiSnapshot) QualityPct() float64 {
	pct := 2 * (w.Strength + 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Identity is an enrolled employee as the verification core sees it: the
// enrolled embedding plus the optional device binding. Profile fields are
// carried along for responses and logs.
type Identity struct {
	ID        string
	Email     string
	FullName  string
	Embedding []float32
	DeviceID  string // bound device, empty if not yet bound
}

// Bound reports whether the identity has a device binding.
func (id *Identity) Bound() bool {
	return id.DeviceID != ""
}

// TrustContext is the per-request presence claim evaluated by the trust gate.
type TrustContext struct {
	Geo      GeoPoint
	Wifi     WifiSnapshot
	DeviceID string
	// Hint is an optional claimed identity (email) used by the resolver as a
	// fast path. It is never trusted as identity proof.
	Hint string
}

// MatchResult is the outcome of resolving a probe embedding.
type MatchResult struct {
	IdentityID string
	Email      string
	Distance   float64
	Matched    bool
	// Scanned is the number of population candidates compared; zero when
	// the hint fast path short-circuited the scan.
	Scanned int
}

// TrustDecision is an accepted trust gate evaluation. Rejections are
// reported as errors carrying the specific reason.
type TrustDecision struct {
	DistanceMeters float64
	WifiQualityPct float64
	// AutoBind is set when the identity had no device binding and policy
	// allows binding the claimed device on first successful use. Persisting
	// the binding is the caller's responsibility.
	AutoBind bool
}

// AttendanceEvent is one accepted check-in or check-out. Events are
// append-only; once written they are never mutated.
type AttendanceEvent struct {
	ID             string       `json:"id"`
	IdentityID     string       `json:"identity_id"`
	Email          string       `json:"email"`
	FullName       string       `json:"full_name,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
	Type           EventType    `json:"type"`
	Geo            GeoPoint     `json:"location"`
	Wifi           WifiSnapshot `json:"wifi"`
	DistanceMeters float64      `json:"distance_meters"`
	FaceDistance   float64      `json:"face_distance,omitempty"`
	Address        string       `json:"address,omitempty"`
	// DurationHours is set only on check-out and holds the elapsed hours
	// since the paired check-in. Nil when no prior check-in was found.
	DurationHours *float64 `json:"duration_hours,omitempty"`
}
