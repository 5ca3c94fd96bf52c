// Package log is a context wrapper around slog.Logger.
//
// The routing and layout packages emit trace events through here. A context
// without an attached logger routes to a discard sink, so callers that don't
// care about tracing pay nothing for it.
package log

import (
	"context"
	"io"
	"os"
	"testing"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"cdr.dev/slog/sloggers/slogtest"
)

var _discard = slog.Make(sloghuman.Sink(io.Discard))

type loggerKey struct{}

func from(ctx context.Context) slog.Logger {
	l, ok := ctx.Value(loggerKey{}).(slog.Logger)
	if !ok {
		return _discard
	}
	return l
}

func With(ctx context.Context, l slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Stderr attaches a human-readable stderr logger to ctx at the given level.
func Stderr(ctx context.Context, level slog.Level) context.Context {
	l := slog.Make(sloghuman.Sink(os.Stderr)).Leveled(level)
	return With(ctx, l)
}

// WithTB attaches a logger that writes through t, so trace events show up in
// test output on failure.
func WithTB(ctx context.Context, t testing.TB) context.Context {
	l := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	if os.Getenv("DEBUG") != "" {
		l = l.Leveled(slog.LevelDebug)
	}
	return With(ctx, l)
}

func Debug(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...slog.Field) {
	slog.Helper()
	from(ctx).Error(ctx, msg, fields...)
}
