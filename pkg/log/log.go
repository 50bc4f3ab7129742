package log

import (
	"context"
	"log/slog"
	"os"
)

// level starts at info; main raises or lowers it once flags are parsed.
var (
	level         = new(slog.LevelVar)
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
)

func init() {
	level.Set(slog.LevelInfo)
}

type loggerKey struct{}

// Ctx is the logger attached to ctx, or the process-wide JSON logger.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// With attaches logger to ctx.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// WithFeed tags every line logged through the returned context with feed.
func WithFeed(ctx context.Context, feed string) context.Context {
	return With(ctx, Ctx(ctx).With(slog.String("feed", feed)))
}

// SetDefaultLogLevel changes the level of the process-wide logger.
func SetDefaultLogLevel(l slog.Level) {
	level.Set(l)
}
