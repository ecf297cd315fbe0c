package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string
	// RedisURL is optional. Without it quotes are not memoized and rate
	// limits are kept in process memory.
	RedisURL            string
	VendingSchedulePath string
	QuoteCacheTTL       time.Duration
	QuoteRatePerMin     int
	APIRatePerMin       int
	AdminJWTSecret      string
	AdminJWTIssuer      string
	AdminJWTAudience    string
	AdminJWTClockSkew   time.Duration
	CORSAllowedOrigins  []string
	BodyLimitBytes      int64
	SecurityHeaders     bool
	HSTSEnabled         bool
	Obs                 ObsConfig
}

// ObsConfig configures logging, metrics, tracing and profiling.
type ObsConfig struct {
	LogFormat          string
	LogLevel           string
	MetricsEnabled     bool
	MetricsNamespace   string
	MetricsBucketsMS   string
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	TracingSampleRatio float64
	PprofEnabled       bool
	PprofUser          string
	PprofPass          string
	RedisReadyTimeout  time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:            strings.TrimSpace(k.String("REDIS_URL")),
		VendingSchedulePath: strings.TrimSpace(k.String("VENDING_SCHEDULE_PATH")),
		QuoteCacheTTL:       parseDuration(k.String("QUOTE_CACHE_TTL"), "10m"),
		QuoteRatePerMin:     parseInt(k.String("RATE_LIMIT_QUOTE_PER_MIN"), 120),
		APIRatePerMin:       parseInt(k.String("RATE_LIMIT_API_PER_MIN"), 600),
		AdminJWTSecret:      k.String("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:      strings.TrimSpace(k.String("ADMIN_JWT_ISSUER")),
		AdminJWTAudience:    strings.TrimSpace(k.String("ADMIN_JWT_AUDIENCE")),
		AdminJWTClockSkew:   parseDuration(k.String("ADMIN_JWT_CLOCK_SKEW"), "30s"),
		CORSAllowedOrigins:  splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:      int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		SecurityHeaders:     parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:         parseBool(k.String("SECURITY_HSTS_ENABLED"), false),
		Obs: ObsConfig{
			LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "vending"),
			MetricsBucketsMS:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:     parseBool(k.String("OBS_ENABLE_TRACING"), true),
			TracingExporter:    valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			TracingSampleRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:       parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:          strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
			RedisReadyTimeout:  time.Duration(parseInt(k.String("HEALTH_READY_REDIS_TIMEOUT_MS"), 300)) * time.Millisecond,
		},
	}

	if cfg.VendingSchedulePath == "" {
		return nil, errors.New("VENDING_SCHEDULE_PATH is required")
	}
	if strings.TrimSpace(cfg.AdminJWTSecret) == "" {
		return nil, errors.New("ADMIN_JWT_SECRET is required")
	}
	if cfg.QuoteRatePerMin < 0 || cfg.APIRatePerMin < 0 {
		return nil, errors.New("rate limits must not be negative")
	}
	if cfg.BodyLimitBytes <= 0 {
		return nil, errors.New("BODY_LIMIT_BYTES must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AllowedOrigins returns the CORS allowlist, defaulting to any origin.
func (c *Config) AllowedOrigins() string {
	if len(c.CORSAllowedOrigins) == 0 {
		return "*"
	}
	return strings.Join(c.CORSAllowedOrigins, ",")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
