// Package config loads service configuration from the environment, with an
// optional YAML file for deployments that prefer files over env injection.
// Environment variables always win over file values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for everything that is not a credential.
const (
	DefaultPort             = 8000
	DefaultAuthUsername     = "admin"
	DefaultLogLevel         = "info"
	DefaultStreamTimeout    = 25 * time.Second
	DefaultSessionTTL       = 15 * time.Minute
	DefaultReapInterval     = 30 * time.Second
	DefaultMaxSessions      = 50
	DefaultMaxHistoryTurns  = 5
	DefaultMaxHistoryTokens = 8000
	DefaultHeartbeatPeriod  = 10 * time.Second
	DefaultMaxOutputTokens  = 4096
	DefaultMaxMessageBytes  = 16 * 1024
)

// Config is the resolved service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Vendors VendorsConfig `yaml:"vendors"`
	Tools   ToolsConfig   `yaml:"tools"`
	Stream  StreamConfig  `yaml:"stream"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxMessageBytes caps the accepted query message size.
	MaxMessageBytes int `yaml:"max_message_bytes"`
}

// AuthConfig carries the shared HTTP Basic credential. An empty password
// disables auth entirely (dev only).
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Enabled reports whether Basic auth is enforced.
func (a AuthConfig) Enabled() bool {
	return a.Password != ""
}

type VendorsConfig struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GoogleAPIKey    string `yaml:"google_api_key"`
}

type ToolsConfig struct {
	KalimatAPIKey string        `yaml:"kalimat_api_key"`
	KalimatURL    string        `yaml:"kalimat_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

// StreamConfig bounds a single generation. Timeout is the per-model
// deadline; HeartbeatPeriod paces keep-alive frames while any model is
// still streaming.
type StreamConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
}

type SessionConfig struct {
	TTL              time.Duration `yaml:"ttl"`
	ReapInterval     time.Duration `yaml:"reap_interval"`
	MaxSessions      int           `yaml:"max_sessions"`
	MaxHistoryTurns  int           `yaml:"max_history_turns"`
	MaxHistoryTokens int           `yaml:"max_history_tokens"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Environment string `yaml:"environment"`
	Insecure    bool   `yaml:"insecure"`
}

// Load builds the configuration. If path is non-empty the YAML file is read
// first (with ${VAR} expansion), then environment variables overlay it, then
// defaults fill the gaps. Credentials are never defaulted.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	return &cfg, nil
}

// applyEnv overlays environment variables onto cfg. Set variables always
// replace file values.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Vendors.AnthropicAPIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.Vendors.GoogleAPIKey = v
	}
	if v := os.Getenv("KALIMAT_API_KEY"); v != "" {
		cfg.Tools.KalimatAPIKey = v
	}
	if v := os.Getenv("MODEL_COMPARISON_AUTH_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("MODEL_COMPARISON_AUTH_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("STREAM_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return fmt.Errorf("invalid STREAM_TIMEOUT_SECONDS %q", v)
		}
		cfg.Stream.Timeout = time.Duration(secs) * time.Second
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.MaxMessageBytes == 0 {
		cfg.Server.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.Auth.Username == "" {
		cfg.Auth.Username = DefaultAuthUsername
	}
	if cfg.Tools.KalimatURL == "" {
		cfg.Tools.KalimatURL = "https://api.kalimat.dev"
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = 10 * time.Second
	}
	if cfg.Stream.Timeout == 0 {
		cfg.Stream.Timeout = DefaultStreamTimeout
	}
	if cfg.Stream.HeartbeatPeriod == 0 {
		cfg.Stream.HeartbeatPeriod = DefaultHeartbeatPeriod
	}
	if cfg.Stream.MaxOutputTokens == 0 {
		cfg.Stream.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = DefaultSessionTTL
	}
	if cfg.Session.ReapInterval == 0 {
		cfg.Session.ReapInterval = DefaultReapInterval
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = DefaultMaxSessions
	}
	if cfg.Session.MaxHistoryTurns == 0 {
		cfg.Session.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	if cfg.Session.MaxHistoryTokens == 0 {
		cfg.Session.MaxHistoryTokens = DefaultMaxHistoryTokens
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.Environment == "" {
		cfg.Tracing.Environment = "development"
	}
}

// Validate fails fast on missing credentials so the process refuses to start
// half-configured. The Kalimat key is optional: search tools return error
// documents without it.
func (c *Config) Validate() error {
	var missing []string
	if c.Vendors.AnthropicAPIKey == "" {
		missing = append(missing, "ANTHROPIC_API_KEY")
	}
	if c.Vendors.GoogleAPIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}

// LogLevel maps the configured level string to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
