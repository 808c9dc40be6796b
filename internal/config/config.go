// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// synchronization engine (paging, fallback deadline, pending debounce), the
// outbound webhook, the local store, logging, and the agentd HTTP server.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Agent reply modes for agentd's webhook endpoint.
const (
	AgentModeSync  = "sync"  // reply inline in the HTTP response body
	AgentModeAsync = "async" // acknowledge, then insert the reply into the store
)

// CORSConfig defines Cross-Origin Resource Sharing settings for agentd.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WebhookConfig holds the outbound automation endpoint settings. An empty URL
// disables the webhook entirely; sends then stay local to the store.
type WebhookConfig struct {
	URL     string        // WEBHOOK_URL
	APIKey  string        // WEBHOOK_API_KEY, sent as X-Api-Key
	Secret  string        // WEBHOOK_SECRET, HMAC-SHA256 key for X-Signature
	Timeout time.Duration // WEBHOOK_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Conversation scope
	ClientID string // CLIENT_ID: tenant key stamped on every row
	Source   string // CHAT_SOURCE: origin tag for sessions

	// Sync engine
	PageSize      int           // PAGE_SIZE: history page / reconcile window size
	FallbackDelay time.Duration // FALLBACK_DELAY: reconcile deadline after a send
	PendingDelay  time.Duration // PENDING_DELAY: debounce before showing "waiting"

	// Store / local state
	DBPath   string // DB_PATH: SQLite database file
	StateDir string // STATE_DIR: directory for the persisted sender id ("" = user config dir)

	// Outbound webhook
	Webhook WebhookConfig

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// agentd server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64 // MAX_BODY_BYTES: request body cap for agentd
	GinMode           string // debug|release|test
	AgentMode         string // sync|async: reply in the HTTP body or via store insert

	// Rate limiting (agentd)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	CORS CORSConfig
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
		ClientID: getenv("CLIENT_ID", "7f91bc37-3173-4bec-98bc-ec27627624f1"),
		Source:   getenv("CHAT_SOURCE", "landing_page"),

		PageSize:      getint("PAGE_SIZE", 10),
		FallbackDelay: getdur("FALLBACK_DELAY", 5*time.Second),
		PendingDelay:  getdur("PENDING_DELAY", 300*time.Millisecond),

		DBPath:   getenv("DB_PATH", "talkvera.db"),
		StateDir: getenv("STATE_DIR", ""),

		Webhook: WebhookConfig{
			URL:     getenv("WEBHOOK_URL", ""),
			APIKey:  getenv("WEBHOOK_API_KEY", ""),
			Secret:  getenv("WEBHOOK_SECRET", ""),
			Timeout: getdur("WEBHOOK_TIMEOUT", 10*time.Second),
		},

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		AgentMode:         strings.ToLower(getenv("AGENT_MODE", "async")),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "chat-talkvera"),
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
	if strings.TrimSpace(cfg.ClientID) == "" {
		return cfg, errors.New("CLIENT_ID must not be empty")
	}
	if strings.TrimSpace(cfg.Source) == "" {
		return cfg, errors.New("CHAT_SOURCE must not be empty")
	}
	if cfg.PageSize < 1 {
		return cfg, errors.New("PAGE_SIZE must be >= 1")
	}
	if cfg.FallbackDelay <= 0 {
		return cfg, errors.New("FALLBACK_DELAY must be a positive duration")
	}
	if cfg.PendingDelay < 0 {
		return cfg, errors.New("PENDING_DELAY must be >= 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.Webhook.URL != "" && cfg.Webhook.Timeout <= 0 {
		return cfg, errors.New("WEBHOOK_TIMEOUT must be a positive duration")
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
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	switch cfg.AgentMode {
	case AgentModeSync, AgentModeAsync:
	default:
		return cfg, errors.New("AGENT_MODE must be sync or async")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
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
