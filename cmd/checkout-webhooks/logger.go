package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const levelTrace = slog.Level(-8)

var _ glog.Logger = (*consoleLogger)(nil)

// consoleLogger writes JSON lines through slog behind the glog contract the
// rest of the module logs against.
type consoleLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func newConsoleLogger(w io.Writer, level string) glog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &consoleLogger{logger: slog.New(handler), ctx: context.Background()}
}

func (l *consoleLogger) Trace(msg string, args ...any) { l.logger.Log(l.ctx, levelTrace, msg, args...) }
func (l *consoleLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *consoleLogger) Info(msg string, args ...any) { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *consoleLogger) Warn(msg string, args ...any) { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *consoleLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *consoleLogger) Fatal(msg string, args ...any) {
	l.logger.ErrorContext(l.ctx, msg, args...)
	os.Exit(1)
}

func (l *consoleLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	return &consoleLogger{logger: l.logger, ctx: ctx}
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
