package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/officeflow/attendance/internal/attendance"
)

//go:embed office.yaml
var officeYAML []byte

type Config struct {
	Office    OfficeConfig
	Geofence  GeofenceConfig
	Wifi      WifiConfig
	Matching  MatchingConfig
	Embedding EmbeddingConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	HTTP      HTTPConfig
}

type OfficeConfig struct {
	Lat       float64 `yaml:"lat"`
	Long      float64 `yaml:"long"`
	WifiSSID  string  `yaml:"wifi_ssid"`
	WifiBSSID string  `yaml:"wifi_bssid"`
}

type GeofenceConfig struct {
	RadiusMeters       float64 `yaml:"radius_meters"`        // 1:1 presence verification
	StrictRadiusMeters float64 `yaml:"strict_radius_meters"` // 1:N attendance and re-enrollment
}

type WifiConfig struct {
	MinSignalStrength float64 `yaml:"min_signal_strength"` // dBm floor for 1:1 verification
	RequiredPct       float64 `yaml:"required_pct"`        // quality percentage for 1:N attendance
}

type MatchingConfig struct {
	Threshold float64 `yaml:"threshold"` // cosine distance acceptance bound
	Margin    float64 `yaml:"margin"`    // required gap between best and runner-up
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 512
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration // defaults to 24h
}

type HTTPConfig struct {
	Addr string // defaults to :8080
}

type officeDefaults struct {
	Office   OfficeConfig   `yaml:"office"`
	Geofence GeofenceConfig `yaml:"geofence"`
	Wifi     WifiConfig     `yaml:"wifi"`
	Matching MatchingConfig `yaml:"matching"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func Load() *Config {
	var defaults officeDefaults
	if err := yaml.Unmarshal(officeYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded office.yaml: " + err.Error())
	}

	return &Config{
		Office: OfficeConfig{
			Lat:       envFloat("OFFICE_LAT", defaults.Office.Lat),
			Long:      envFloat("OFFICE_LONG", defaults.Office.Long),
			WifiSSID:  envString("OFFICE_WIFI_SSID", defaults.Office.WifiSSID),
			WifiBSSID: envString("OFFICE_WIFI_BSSID", defaults.Office.WifiBSSID),
		},
		Geofence: GeofenceConfig{
			RadiusMeters:       envFloat("GEOFENCE_RADIUS_METERS", defaults.Geofence.RadiusMeters),
			StrictRadiusMeters: envFloat("STRICT_GEOFENCE_RADIUS_METERS", defaults.Geofence.StrictRadiusMeters),
		},
		Wifi: WifiConfig{
			MinSignalStrength: envFloat("MIN_WIFI_SIGNAL_STRENGTH", defaults.Wifi.MinSignalStrength),
			RequiredPct:       envFloat("REQUIRED_WIFI_PCT", defaults.Wifi.RequiredPct),
		},
		Matching: MatchingConfig{
			Threshold: envFloat("FACE_MATCH_THRESHOLD", defaults.Matching.Threshold),
			Margin:    envFloat("MATCH_MARGIN", defaults.Matching.Margin),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", "http://localhost:8000"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  envDuration("TOKEN_TTL", 24*time.Hour),
		},
		HTTP: HTTPConfig{
			Addr: envString("HTTP_ADDR", ":8080"),
		},
	}
}

func (c *Config) office() attendance.GeoPoint {
	return attendance.GeoPoint{Lat: c.Office.Lat, Long: c.Office.Long}
}

// PresencePolicy parameterizes the 1:1 verification flow: the wide radius
// and the raw dBm floor, first-use device binding allowed.
func (c *Config) PresencePolicy() attendance.Policy {
	return attendance.Policy{
		Office:          c.office(),
		RadiusMeters:    c.Geofence.RadiusMeters,
		MinWifiStrength: c.Wifi.MinSignalStrength,
		SSID:            c.Office.WifiSSID,
		BSSID:           c.Office.WifiBSSID,
		AllowAutoBind:   true,
	}
}

// AttendancePolicy parameterizes the 1:N smart attendance flow: the strict
// radius, the signal percentage gate, and first-use device binding.
func (c *Config) AttendancePolicy() attendance.Policy {
	return attendance.Policy{
		Office:          c.office(),
		RadiusMeters:    c.Geofence.StrictRadiusMeters,
		RequiredWifiPct: c.Wifi.RequiredPct,
		SSID:            c.Office.WifiSSID,
		BSSID:           c.Office.WifiBSSID,
		AllowAutoBind:   true,
	}
}

// EnrollmentPolicy parameterizes face re-enrollment: the strict radius and
// percentage gate with no device changes.
func (c *Config) EnrollmentPolicy() attendance.Policy {
	return attendance.Policy{
		Office:          c.office(),
		RadiusMeters:    c.Geofence.StrictRadiusMeters,
		RequiredWifiPct: c.Wifi.RequiredPct,
		SSID:            c.Office.WifiSSID,
		BSSID:           c.Office.WifiBSSID,
	}
}
