package mindex

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with mindex-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithPivots adds the pivot count and max cluster level to the logger.
func (l *Logger) WithPivots(pivots, maxLevel int) *Logger {
	return &Logger{
		Logger: l.Logger.With("pivots", pivots, "max_level", maxLevel),
	}
}

// LogPhase logs the completion of one build phase.
func (l *Logger) LogPhase(ctx context.Context, phase string, elapsed time.Duration, args ...any) {
	l.InfoContext(ctx, "build phase completed",
		append([]any{"phase", phase, "elapsed", elapsed}, args...)...,
	)
}

// LogBuild logs a build operation.
func (l *Logger) LogBuild(ctx context.Context, objects int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"objects", objects,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"objects", objects,
			"elapsed", elapsed,
		)
	}
}

// LogRangeQuery logs a range query.
func (l *Logger) LogRangeQuery(ctx context.Context, radius float64, stats QueryStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range query failed",
			"radius", radius,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "range query completed",
			"radius", radius,
			"visited", stats.VisitedClusters,
			"pruned", stats.PrunedByDoublePivot+stats.PrunedByRange,
			"candidates", stats.Candidates,
			"distances", stats.DistanceComputations,
			"results", stats.Results,
		)
	}
}
