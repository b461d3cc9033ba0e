// Package logger configures the process-wide slog logger for hourlyimage.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level determines the minimum severity level of messages to be logged
	Level slog.Level
	// Output specifies where the logs should be written
	Output io.Writer
	// JSONFormat determines whether logs should be formatted as JSON (true) or text (false)
	JSONFormat bool
}

// NewLogger creates a new slog.Logger with the specified configuration.
func NewLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

// SetDefault sets the default logger for the application.
func SetDefault(cfg Config) {
	slog.SetDefault(NewLogger(cfg))
}

// ParseLevel maps a flag value (debug, info, warn, error) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
