package biomatch

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/biomatch/model"
)

// Logger wraps slog.Logger with biomatch-specific helpers.
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
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogRegister logs a registration attempt.
func (l *Logger) LogRegister(ctx context.Context, t model.Type, id string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "registration failed",
			"type", t,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "registration completed",
			"type", t,
			"id", id,
			"duration", duration,
		)
	}
}

// LogCompare logs a comparison.
func (l *Logger) LogCompare(ctx context.Context, t model.Type, matchID string, score float64, population int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "comparison failed",
			"type", t,
			"population", population,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "comparison completed",
			"type", t,
			"match", matchID,
			"score", score,
			"population", population,
		)
	}
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"id", id,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "delete completed",
			"id", id,
		)
	}
}

// LogRecovery logs a journal replay at startup.
func (l *Logger) LogRecovery(ctx context.Context, snapshotRecords, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "journal recovery failed",
			"entries_replayed", entriesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "journal recovery completed",
			"snapshot_records", snapshotRecords,
			"entries_replayed", entriesReplayed,
		)
	}
}
