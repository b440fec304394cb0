package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents the available logging levels
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// parseLogLevel converts a string to a LogLevel
func parseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "error":
		return LogLevelError, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "info":
		return LogLevelInfo, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return "", fmt.Errorf("invalid log level: %s (must be error, warn, info, or debug)", level)
	}
}

// setupLogger creates a text slog logger writing to w.
func setupLogger(level LogLevel, w io.Writer) *slog.Logger {
	var slogLevel slog.Level

	switch level {
	case LogLevelError:
		slogLevel = slog.LevelError
	case LogLevelWarn:
		slogLevel = slog.LevelWarn
	case LogLevelInfo:
		slogLevel = slog.LevelInfo
	case LogLevelDebug:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}

	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler)
}

// openLogOutput picks the log destination.
//
// An explicit file always wins. Without one, logs go to stdout unless the
// terminal display owns the screen, in which case they are discarded.
// The returned close func is never nil.
func openLogOutput(path string, terminal bool) (io.Writer, func() error, error) {
	if path != "" {
		f, err := os.OpenFile(ExpandPath(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, f.Close, nil
	}
	if terminal {
		return io.Discard, func() error { return nil }, nil
	}
	return os.Stdout, func() error { return nil }, nil
}
