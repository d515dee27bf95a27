// Package logging provides the structured JSON logger used across gmpsched.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/example/gmpsched/internal/ctxutil"
)

// Level represents logging levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel converts a string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelWarn, LevelError:
		return l
	}
	return LevelInfo
}

// Config holds logger configuration.
type Config struct {
	Level     Level
	Service   string
	Version   string
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns a default logger configuration writing to stderr,
// so that command output on stdout stays clean.
func DefaultConfig(service string) Config {
	return Config{
		Level:   LevelInfo,
		Service: service,
		Version: "dev",
		Output:  os.Stderr,
	}
}

// Logger wraps slog.Logger with gmpsched attributes.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	base := slog.New(slog.NewJSONHandler(output, opts)).With(
		"service", cfg.Service,
		"version", cfg.Version,
	)
	return &Logger{Logger: base}
}

// Nop returns a logger that discards everything. Used by tests and by
// services constructed without a logger.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// WithSession adds the scheduling session id.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{Logger: l.Logger.With("session", sessionID)}
}

// WithComponent adds the emitting component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// WithContext adds the operator carried by ctx, when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	operator := ctxutil.OperatorFromContext(ctx)
	if operator == "" {
		return l
	}
	return &Logger{Logger: l.Logger.With("operator", operator)}
}

// WithFields adds multiple fields to the logger.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return &Logger{Logger: l.Logger.With(attrs...)}
}
