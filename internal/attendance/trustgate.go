package attendance

import (
	"math"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

const earthRadiusMeters = 6371000

// Policy is the immutable per-flow parameterization of the trust gate.
// Flows construct their own Policy value explicitly instead of reading
// ambient configuration, so the intentional differences between flows
// (e.g. the stricter re-enrollment radius) are visible and testable.
type Policy struct {
	Office       GeoPoint
	RadiusMeters float64

	// RequiredWifiPct rejects claims whose signal quality percentage is
	// below this bound. Zero disables the percentage gate.
	RequiredWifiPct float64
	// MinWifiStrength rejects claims weaker than this dBm value. Zero
	// disables the raw-strength gate.
	MinWifiStrength float64

	// SSID and BSSID, when set, must match the claim's reported network.
	// BSSID comparison is case-insensitive. A claim that omits the field
	// is not rejected; enforcement requires both sides to supply a value.
	SSID  string
	BSSID string

	// AllowAutoBind binds the claimed device on first successful use when
	// the identity has no binding yet.
	AllowAutoBind bool
}

// HaversineMeters computes the great-circle distance between two points.
func HaversineMeters(a, b GeoPoint) float64 {
	dlat := radians(b.Lat - a.Lat)
	dlon := radians(b.Long - a.Long)
	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// TrustGate evaluates presence claims against a Policy. The zero value is
// usable; the struct exists so the gate can grow dependencies without
// changing call sites.
type TrustGate struct{}

// NewTrustGate creates a trust gate.
func NewTrustGate() *TrustGate {
	return &TrustGate{}
}

// PreCheckWifi runs only the signal quality gate. The population flow
// applies it before the (expensive) embedding extraction.
func (g *TrustGate) PreCheckWifi(claim TrustContext, policy Policy) error {
	pct := claim.Wifi.QualityPct()
	if policy.RequiredWifiPct > 0 && pct < policy.RequiredWifiPct {
		return goerr.Wrap(ErrWifiQualityTooLow, "signal quality below required percentage",
			goerr.V("measured_pct", pct),
			goerr.V("required_pct", policy.RequiredWifiPct))
	}
	if policy.MinWifiStrength != 0 && claim.Wifi.Strength < policy.MinWifiStrength {
		return goerr.Wrap(ErrWifiQualityTooLow, "signal strength below minimum",
			goerr.V("measured_dbm", claim.Wifi.Strength),
			goerr.V("required_dbm", policy.MinWifiStrength))
	}
	return nil
}

// Evaluate runs the full gate against a resolved identity. Checks run in
// order and the first failure short-circuits: wifi quality, device
// binding, geofence, network identity. On acceptance the decision carries
// the measured distance for downstream logging.
func (g *TrustGate) Evaluate(claim TrustContext, policy Policy, identity *Identity) (TrustDecision, error) {
	if err := g.PreCheckWifi(claim, policy); err != nil {
		return TrustDecision{}, err
	}

	autoBind := false
	if identity.Bound() {
		if claim.DeviceID != "" && claim.DeviceID != identity.DeviceID {
			return TrustDecision{}, goerr.Wrap(ErrDeviceMismatch, "claim device differs from bound device",
				goerr.V("identity_id", identity.ID))
		}
	} else if policy.AllowAutoBind && claim.DeviceID != "" {
		autoBind = true
	}

	dist := HaversineMeters(policy.Office, claim.Geo)
	if dist > policy.RadiusMeters {
		return TrustDecision{}, goerr.Wrap(ErrGeofenceViolation, "claim outside office radius",
			goerr.V("distance_m", dist),
			goerr.V("radius_m", policy.RadiusMeters))
	}

	if policy.SSID != "" && claim.Wifi.SSID != "" && claim.Wifi.SSID != policy.SSID {
		return TrustDecision{}, goerr.Wrap(ErrWifiIdentityMismatch, "SSID mismatch",
			goerr.V("field", "ssid"))
	}
	if policy.BSSID != "" && claim.Wifi.BSSID != "" && !strings.EqualFold(claim.Wifi.BSSID, policy.BSSID) {
		return TrustDecision{}, goerr.Wrap(ErrWifiIdentityMismatch, "BSSID mismatch",
			goerr.V("field", "bssid"))
	}

	return TrustDecision{
		DistanceMeters: dist,
		WifiQualityPct: claim.Wifi.QualityPct(),
		AutoBind:       autoBind,
	}, nil
}
