// Package observability provides structured logging, metrics and health
// checks for slate processes.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
)

// LogFormat selects the handler.
type LogFormat string

const (
	LogFormatText    LogFormat = "text"
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level          string
	Format         LogFormat
	Output         io.Writer
	AddSource      bool
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig is used by interactive CLI commands.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      LogFormatConsole,
		Output:      os.Stderr,
		ServiceName: "slate",
	}
}

// NewLogger builds a logger for cfg. Every record carries the service
// attributes plus the correlation and request IDs found on its context.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	switch cfg.Format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	case LogFormatConsole:
		handler = newConsoleHandler(cfg.Output, cfg.Level, cfg.ServiceName, cfg.AddSource)
	default:
		handler = slog.NewTextHandler(cfg.Output, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" && cfg.Format != LogFormatConsole {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}

	return slog.New(&attributeHandler{handler: handler, attrs: attrs})
}

func newConsoleHandler(w io.Writer, level, prefix string, caller bool) slog.Handler {
	lvl, err := charmLog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = charmLog.InfoLevel
	}
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           lvl,
		Prefix:          prefix,
		ReportTimestamp: true,
		ReportCaller:    caller,
		TimeFormat:      time.Kitchen,
		Formatter:       charmLog.TextFormatter,
	})
}

// ParseLevel maps a config string to a slog level; unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type attributeHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
}

func (h *attributeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *attributeHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	if id := CorrelationIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String(RequestIDKey, id))
	}
	return h.handler.Handle(ctx, r)
}

func (h *attributeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &attributeHandler{handler: h.handler.WithAttrs(attrs), attrs: h.attrs}
}

func (h *attributeHandler) WithGroup(name string) slog.Handler {
	return &attributeHandler{handler: h.handler.WithGroup(name), attrs: h.attrs}
}
