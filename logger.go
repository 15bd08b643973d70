package filesaga

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with filesaga-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithUser adds a user field to the logger.
func (l *Logger) WithUser(userID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("user", userID),
	}
}

// WithRequestID adds a request_id field to the logger.
func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("request_id", id),
	}
}

// LogCreate logs the outcome of a create-file call.
func (l *Logger) LogCreate(ctx context.Context, path string, err error) {
	if err != nil {
		l.WarnContext(ctx, "create file failed",
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "create file completed",
			"path", path,
		)
	}
}

// LogCompensation logs the removal of a master entry after a failed saga step.
// cause is the fault that triggered the compensation.
func (l *Logger) LogCompensation(ctx context.Context, path string, cause, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compensation failed, master entry may be orphaned",
			"path", path,
			"cause", cause,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "master entry compensated",
			"path", path,
			"cause", cause,
		)
	}
}
