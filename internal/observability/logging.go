package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	// Defaults to "info".
	Level string

	// Format is "json" or "text". When empty, text is chosen if Output is
	// a terminal, json otherwise.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// redactPatterns match secrets that must never reach log output: vendor API
// keys and generic key/token assignments.
var redactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{24,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password)[\s:=]+["']?[^\s"']{8,}["']?`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-.]{16,}`),
}

// Redact replaces anything that looks like a credential with a placeholder.
func Redact(s string) string {
	for _, re := range redactPatterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// NewLogger builds the structured logger every component shares. All string
// values pass through Redact before they are written.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	format := cfg.Format
	if format == "" {
		format = "json"
		if f, ok := cfg.Output.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}

	opts := &slog.HandlerOptions{Level: LogLevelFromString(cfg.Level)}
	var inner slog.Handler
	if format == "text" {
		inner = slog.NewTextHandler(cfg.Output, opts)
	} else {
		inner = slog.NewJSONHandler(cfg.Output, opts)
	}

	return slog.New(&redactHandler{inner: inner})
}

// LogLevelFromString converts a config level to a slog.Level, defaulting to
// info on anything unrecognized.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactHandler rewrites string attribute values and messages through
// Redact before delegating to the wrapped handler.
type redactHandler struct {
	inner slog.Handler
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = redactAttr(a)
	}
	return &redactHandler{inner: h.inner.WithAttrs(cleaned)}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		cleaned := make([]any, 0, len(group))
		for _, g := range group {
			cleaned = append(cleaned, redactAttr(g))
		}
		return slog.Group(a.Key, cleaned...)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return slog.String(a.Key, Redact(err.Error()))
		}
		return a
	default:
		return a
	}
}
