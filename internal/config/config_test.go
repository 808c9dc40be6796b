package config

import (
	"testing"
	"time"
)

// clearChatEnv unsets every variable Load reads so tests see defaults plus
// only what they set themselves.
func clearChatEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"CLIENT_ID", "CHAT_SOURCE",
		"PAGE_SIZE", "FALLBACK_DELAY", "PENDING_DELAY",
		"DB_PATH", "STATE_DIR",
		"WEBHOOK_URL", "WEBHOOK_API_KEY", "WEBHOOK_SECRET", "WEBHOOK_TIMEOUT",
		"LOG_LEVEL", "LOG_PRETTY",
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT",
		"IDLE_TIMEOUT", "MAX_HEADER_BYTES", "MAX_BODY_BYTES",
		"GIN_MODE", "AGENT_MODE",
		"RATE_RPS", "RATE_BURST",
		"CORS_ALLOWED_ORIGINS",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME",
		"OTEL_TRACES_SAMPLER_ARG",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearChatEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Source != "landing_page" {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.PageSize)
	}
	if cfg.FallbackDelay != 5*time.Second {
		t.Errorf("FallbackDelay = %v, want 5s", cfg.FallbackDelay)
	}
	if cfg.PendingDelay != 300*time.Millisecond {
		t.Errorf("PendingDelay = %v, want 300ms", cfg.PendingDelay)
	}
	if cfg.DBPath != "talkvera.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Webhook.URL != "" || cfg.Webhook.Timeout != 10*time.Second {
		t.Errorf("webhook defaults wrong: %+v", cfg.Webhook)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.AgentMode != AgentModeAsync {
		t.Errorf("AgentMode = %q", cfg.AgentMode)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Errorf("rate defaults wrong: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.OTEL.Enabled {
		t.Error("OTEL should default off")
	}
	if len(cfg.CORS.AllowedOrigins) != 0 {
		t.Errorf("CORS origins should default empty: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearChatEnv(t)
	t.Setenv("CLIENT_ID", "tenant-42")
	t.Setenv("CHAT_SOURCE", "mobile")
	t.Setenv("PAGE_SIZE", "25")
	t.Setenv("FALLBACK_DELAY", "2s")
	t.Setenv("PENDING_DELAY", "50ms")
	t.Setenv("WEBHOOK_URL", "https://agent.example.com/webhook")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("AGENT_MODE", "SYNC")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ClientID != "tenant-42" || cfg.Source != "mobile" {
		t.Errorf("identity overrides lost: %q %q", cfg.ClientID, cfg.Source)
	}
	if cfg.PageSize != 25 || cfg.FallbackDelay != 2*time.Second || cfg.PendingDelay != 50*time.Millisecond {
		t.Errorf("engine overrides lost: %d %v %v", cfg.PageSize, cfg.FallbackDelay, cfg.PendingDelay)
	}
	if cfg.Webhook.URL != "https://agent.example.com/webhook" || cfg.Webhook.Timeout != 3*time.Second {
		t.Errorf("webhook overrides lost: %+v", cfg.Webhook)
	}
	// Mode values are case-insensitive, "warning" is an alias for "warn".
	if cfg.AgentMode != AgentModeSync {
		t.Errorf("AgentMode = %q", cfg.AgentMode)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example.com" {
		t.Errorf("CORS parsing wrong: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero page size", "PAGE_SIZE", "0"},
		{"negative fallback", "FALLBACK_DELAY", "-1s"},
		{"negative pending", "PENDING_DELAY", "-10ms"},
		{"bad agent mode", "AGENT_MODE", "batch"},
		{"negative rps", "RATE_RPS", "-1"},
		{"zero burst", "RATE_BURST", "0"},
		{"sample ratio above one", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearChatEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%q should fail validation", tc.key, tc.value)
			}
		})
	}
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	clearChatEnv(t)
	t.Setenv("PAGE_SIZE", "not-a-number")
	t.Setenv("FALLBACK_DELAY", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PageSize != 10 {
		t.Errorf("unparseable PAGE_SIZE should fall back to default, got %d", cfg.PageSize)
	}
	if cfg.FallbackDelay != 5*time.Second {
		t.Errorf("unparseable FALLBACK_DELAY should fall back to default, got %v", cfg.FallbackDelay)
	}
}

func TestLoadNormalizesGinMode(t *testing.T) {
	clearChatEnv(t)
	t.Setenv("GIN_MODE", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GinMode != "release" {
		t.Errorf("unknown GIN_MODE should normalize to release, got %q", cfg.GinMode)
	}
}

func TestMustLoadPanicsOnInvalid(t *testing.T) {
	clearChatEnv(t)
	t.Setenv("PAGE_SIZE", "0")

	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad should panic on invalid config")
		}
	}()
	MustLoad()
}
