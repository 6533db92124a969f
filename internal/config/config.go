// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the cache backend, the upstream fetch service, rate limiting and
// observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
	BackendValkey  = "valkey"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-flight-scraper")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CacheConfig selects and configures the cache store backend.
type CacheConfig struct {
	Backend     string        // memory|sqlite|leveldb|valkey
	TTL         time.Duration // fresh tier; the stale tier lives twice as long
	DBPath      string        // sqlite file
	LevelDBPath string        // leveldb directory

	ValkeyAddr     string
	ValkeyPassword string
	ValkeyDB       int
	ValkeyPrefix   string
}

// FetchConfig describes the remote page-fetch service.
type FetchConfig struct {
	ServiceURL    string        // FETCH_SERVICE_URL
	APIKey        string        // FETCH_API_KEY, optional
	Timeout       time.Duration // bound on one shared fetch
	MaxBodyBytes  int64         // upstream body cap
	SearchBaseURL string        // site whose results page is fetched
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // must outlast Fetch.Timeout
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	Cache             CacheConfig
	Fetch             FetchConfig
	ReferenceDataPath string // optional YAML extending airport/airline tables

	// Rate limiting (edge only; disabled when RateRPS == 0)
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		Cache: CacheConfig{
			Backend:        strings.ToLower(strings.TrimSpace(getenv("CACHE_BACKEND", BackendMemory))),
			TTL:            getdur("CACHE_TTL", 10*time.Minute),
			DBPath:         getenv("DB_PATH", "flights.db"),
			LevelDBPath:    getenv("LEVELDB_PATH", "data/leveldb"),
			ValkeyAddr:     getenv("VALKEY_ADDR", "localhost:6379"),
			ValkeyPassword: getenv("VALKEY_PASSWORD", ""),
			ValkeyDB:       getint("VALKEY_DB", 0),
			ValkeyPrefix:   getenv("VALKEY_PREFIX", "flights"),
		},
		Fetch: FetchConfig{
			ServiceURL:    strings.TrimSpace(getenv("FETCH_SERVICE_URL", "http://localhost:3000/fetch")),
			APIKey:        getenv("FETCH_API_KEY", ""),
			Timeout:       getdur("FETCH_TIMEOUT", 60*time.Second),
			MaxBodyBytes:  int64(getint("FETCH_MAX_BODY_BYTES", 8<<20)),
			SearchBaseURL: strings.TrimRight(getenv("SEARCH_BASE_URL", "https://www.kayak.com"), "/"),
		},
		ReferenceDataPath: getenv("REFERENCE_DATA_PATH", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-flight-scraper"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}

	switch cfg.Cache.Backend {
	case BackendMemory, BackendSQLite, BackendLevelDB, BackendValkey:
	default:
		return cfg, errors.New("CACHE_BACKEND must be one of: memory, sqlite, leveldb, valkey")
	}
	if cfg.Cache.TTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be > 0")
	}
	if cfg.Cache.Backend == BackendSQLite && strings.TrimSpace(cfg.Cache.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Cache.Backend == BackendLevelDB && strings.TrimSpace(cfg.Cache.LevelDBPath) == "" {
		return cfg, errors.New("LEVELDB_PATH must not be empty")
	}
	if cfg.Cache.Backend == BackendValkey {
		if strings.TrimSpace(cfg.Cache.ValkeyAddr) == "" {
			return cfg, errors.New("VALKEY_ADDR must not be empty")
		}
		if cfg.Cache.ValkeyDB < 0 {
			return cfg, errors.New("VALKEY_DB must be >= 0")
		}
	}

	if !isHTTPURL(cfg.Fetch.ServiceURL) {
		return cfg, errors.New("FETCH_SERVICE_URL must be an absolute http(s) URL")
	}
	if !isHTTPURL(cfg.Fetch.SearchBaseURL) {
		return cfg, errors.New("SEARCH_BASE_URL must be an absolute http(s) URL")
	}
	if cfg.Fetch.Timeout <= 0 {
		return cfg, errors.New("FETCH_TIMEOUT must be > 0")
	}
	if cfg.WriteTimeout < cfg.Fetch.Timeout {
		return cfg, errors.New("WRITE_TIMEOUT must be >= FETCH_TIMEOUT")
	}
	if cfg.Fetch.MaxBodyBytes <= 0 {
		return cfg, errors.New("FETCH_MAX_BODY_BYTES must be > 0")
	}

	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
