// Package config provides shared configuration loading from environment
// and defaults for the alertmap service and the traffic simulator.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetEnvInt returns the integer for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvBool returns the boolean for key, or defaultValue if unset/invalid.
func GetEnvBool(key string, defaultValue bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetEnvList splits a comma-separated value, dropping empty entries.
func GetEnvList(key string, defaultValue []string) []string {
	s := os.Getenv(key)
	if strings.TrimSpace(s) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Geo provider kinds.
const (
	GeoProviderNone    = "none"
	GeoProviderMaxMind = "maxmind"
	GeoProviderAPI     = "api"
)

// DashboardConfig holds configuration for the alertmap service.
type DashboardConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string
	CORSOrigins     []string

	MaxEvents     int
	Retention     time.Duration
	SweepInterval time.Duration
	RestoreFile   string

	GeoProvider    string
	GeoIPDBPath    string
	GeoAPIEndpoint string
	GeoAPIKey      string
	GeoAPITimeout  time.Duration
	GeoCacheTTL    time.Duration
	GeoAPICooldown time.Duration

	EveFile string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	HostnameTimeout time.Duration
}

// KafkaEnabled reports whether a Kafka feed is configured.
func (c DashboardConfig) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// SimulatorConfig holds configuration for the traffic simulator.
type SimulatorConfig struct {
	IngestURL        string
	Scenario         string
	BatchSize        int
	Rate             float64
	RequestTimeout   time.Duration
	DemoStepDuration time.Duration
	DemoPause        time.Duration
	LogLevel         string
}

// DefaultDashboardConfig returns service config from environment with defaults.
func DefaultDashboardConfig() DashboardConfig {
	provider := strings.ToLower(GetEnv("GEO_PROVIDER", GeoProviderMaxMind))
	switch provider {
	case GeoProviderNone, GeoProviderMaxMind, GeoProviderAPI:
	default:
		provider = GeoProviderNone
	}
	return DashboardConfig{
		HTTPAddr:        GetEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		CORSOrigins:     GetEnvList("CORS_ORIGINS", []string{"*"}),

		MaxEvents:     GetEnvInt("MAX_EVENTS", 20000),
		Retention:     GetEnvDuration("EVENT_RETENTION", 60*time.Minute),
		SweepInterval: GetEnvDuration("SWEEP_INTERVAL", 15*time.Second),
		RestoreFile:   GetEnv("RESTORE_FILE", ""),

		GeoProvider:    provider,
		GeoIPDBPath:    GetEnv("GEOIP_DB", "GeoLite2-City.mmdb"),
		GeoAPIEndpoint: GetEnv("GEO_API_ENDPOINT", ""),
		GeoAPIKey:      GetEnv("GEO_API_KEY", ""),
		GeoAPITimeout:  GetEnvDuration("GEO_API_TIMEOUT", 2*time.Second),
		GeoCacheTTL:    GetEnvDuration("GEO_CACHE_TTL", time.Hour),
		GeoAPICooldown: GetEnvDuration("GEO_API_COOLDOWN", 30*time.Second),

		EveFile: GetEnv("EVE_FILE", ""),

		KafkaBrokers: GetEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:   GetEnv("KAFKA_TOPIC", "suricata-alerts"),
		KafkaGroupID: GetEnv("KAFKA_GROUP_ID", "alertmap"),

		HostnameTimeout: GetEnvDuration("HOSTNAME_TIMEOUT", 2*time.Second),
	}
}

// DefaultSimulatorConfig returns simulator config from environment with defaults.
func DefaultSimulatorConfig() SimulatorConfig {
	rate, err := strconv.ParseFloat(GetEnv("SIM_RATE", "0"), 64)
	if err != nil || rate < 0 {
		rate = 0
	}
	return SimulatorConfig{
		IngestURL:        GetEnv("INGEST_URL", "http://127.0.0.1:8080/api/v1/ingest"),
		Scenario:         strings.ToLower(GetEnv("SIM_SCENARIO", "normal")),
		BatchSize:        GetEnvInt("SIM_BATCH_SIZE", 1),
		Rate:             rate,
		RequestTimeout:   GetEnvDuration("SIM_TIMEOUT", 3*time.Second),
		DemoStepDuration: GetEnvDuration("SIM_DEMO_STEP", 30*time.Second),
		DemoPause:        GetEnvDuration("SIM_DEMO_PAUSE", 5*time.Second),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
	}
}
