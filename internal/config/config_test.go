package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setenv %s: %v", key, err)
	}
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		old, had := os.LookupEnv(key)
		os.Unsetenv(key)
		k := key
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "ANTHROPIC_API_KEY", "GOOGLE_API_KEY", "KALIMAT_API_KEY",
		"MODEL_COMPARISON_AUTH_USERNAME", "MODEL_COMPARISON_AUTH_PASSWORD",
		"PORT", "LOG_LEVEL", "STREAM_TIMEOUT_SECONDS", "OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Auth.Username != "admin" {
		t.Errorf("auth username = %q, want admin", cfg.Auth.Username)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should be disabled without a password")
	}
	if cfg.Stream.Timeout != 25*time.Second {
		t.Errorf("stream timeout = %v, want 25s", cfg.Stream.Timeout)
	}
	if cfg.Session.TTL != 15*time.Minute {
		t.Errorf("session ttl = %v, want 15m", cfg.Session.TTL)
	}
	if cfg.Session.MaxSessions != 50 {
		t.Errorf("max sessions = %d, want 50", cfg.Session.MaxSessions)
	}
	if cfg.Stream.HeartbeatPeriod != 10*time.Second {
		t.Errorf("heartbeat period = %v, want 10s", cfg.Stream.HeartbeatPeriod)
	}
	if cfg.Server.MaxMessageBytes != 16*1024 {
		t.Errorf("max message bytes = %d, want 16384", cfg.Server.MaxMessageBytes)
	}
}

func TestValidateMissingKeys(t *testing.T) {
	clearEnv(t, "ANTHROPIC_API_KEY", "GOOGLE_API_KEY")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure with no vendor keys")
	}
	msg := err.Error()
	if !strings.Contains(msg, "ANTHROPIC_API_KEY") || !strings.Contains(msg, "GOOGLE_API_KEY") {
		t.Errorf("error should name missing variables, got %q", msg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qiyas.yaml")
	file := `
server:
  port: 9100
auth:
  password: filepass
vendors:
  anthropic_api_key: file-anthropic
  google_api_key: file-google
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}

	clearEnv(t, "PORT", "LOG_LEVEL", "STREAM_TIMEOUT_SECONDS")
	setEnv(t, "ANTHROPIC_API_KEY", "env-anthropic")
	setEnv(t, "GOOGLE_API_KEY", "env-google")
	setEnv(t, "MODEL_COMPARISON_AUTH_PASSWORD", "envpass")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want file value 9100", cfg.Server.Port)
	}
	if cfg.Vendors.AnthropicAPIKey != "env-anthropic" {
		t.Errorf("anthropic key = %q, env should win", cfg.Vendors.AnthropicAPIKey)
	}
	if cfg.Auth.Password != "envpass" {
		t.Errorf("auth password = %q, env should win", cfg.Auth.Password)
	}
	if !cfg.Auth.Enabled() {
		t.Error("auth should be enabled with a password set")
	}
	if got := cfg.LogLevel(); got != slog.LevelWarn {
		t.Errorf("log level = %v, want warn", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestStreamTimeoutOverride(t *testing.T) {
	setEnv(t, "STREAM_TIMEOUT_SECONDS", "40")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stream.Timeout != 40*time.Second {
		t.Errorf("stream timeout = %v, want 40s", cfg.Stream.Timeout)
	}

	setEnv(t, "STREAM_TIMEOUT_SECONDS", "zero")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric STREAM_TIMEOUT_SECONDS")
	}
}

func TestInvalidLogLevelRejected(t *testing.T) {
	setEnv(t, "ANTHROPIC_API_KEY", "k1")
	setEnv(t, "GOOGLE_API_KEY", "k2")
	setEnv(t, "LOG_LEVEL", "loud")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation failure for level loud")
	}
}

func TestJSONSchema(t *testing.T) {
	data, err := JSONSchema()
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty schema")
	}
	for _, want := range []string{"anthropic_api_key", "heartbeat_period", "max_sessions"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing field %q", want)
		}
	}
}
