package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive name (debug, info, warn|warning, error)
// to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger defines the minimal logging interface. Arguments are slog style
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// NewSlogLogger builds a Logger writing to w (stderr when nil) in "json" or
// "text" format at the given minimum level.
func NewSlogLogger(level LogLevel, format string, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level.slog()}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

// With returns a logger that adds args to every entry. Loggers that are not
// slog backed are returned unchanged.
func With(l Logger, args ...any) Logger {
	if sa, ok := l.(*SlogAdapter); ok {
		return &SlogAdapter{Logger: sa.Logger.With(args...)}
	}
	return l
}

// OrNoOp returns l, or NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
