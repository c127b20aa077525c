// Package logger provides slog-based structured logging with per-subsystem
// loggers and optional OTel log export.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Subsystem identifies a component for log attribution.
type Subsystem string

const (
	SubsystemAPI      Subsystem = "api"
	SubsystemImages   Subsystem = "images"
	SubsystemServices Subsystem = "services"
	SubsystemNetwork  Subsystem = "network"
	SubsystemVolumes  Subsystem = "volumes"
	SubsystemDevices  Subsystem = "devices"
	SubsystemEngine   Subsystem = "engine"
	SubsystemCLI      Subsystem = "cli"
)

// Config holds logger configuration read from the environment.
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// NewConfig builds a Config from LOG_LEVEL and LOG_FORMAT.
func NewConfig() Config {
	cfg := Config{
		Level:  slog.LevelInfo,
		Format: "json",
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.Level = slog.LevelDebug
	case "warn":
		cfg.Level = slog.LevelWarn
	case "error":
		cfg.Level = slog.LevelError
	}

	if f := strings.ToLower(os.Getenv("LOG_FORMAT")); f == "text" {
		cfg.Format = "text"
	}

	return cfg
}

// New creates the root logger.
func New(cfg Config) *slog.Logger {
	return slog.New(newHandler(cfg, nil))
}

// NewSubsystemLogger creates a logger tagged with a subsystem attribute.
// If otelHandler is non-nil, records are also forwarded to it (for OTLP
// log export) in addition to stdout.
func NewSubsystemLogger(sub Subsystem, cfg Config, otelHandler slog.Handler) *slog.Logger {
	return slog.New(newHandler(cfg, otelHandler)).With("subsystem", string(sub))
}

func newHandler(cfg Config, otelHandler slog.Handler) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	if otelHandler != nil {
		return fanoutHandler{handlers: []slog.Handler{h, otelHandler}}
	}
	return h
}

// fanoutHandler duplicates records across multiple handlers.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}
		if err := h.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return fanoutHandler{handlers: next}
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return fanoutHandler{handlers: next}
}

type contextKey struct{}

// AddToContext returns a context carrying the logger.
func AddToContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger stored in the context, or the default
// logger when none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}
