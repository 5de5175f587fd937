package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *slog.Logger
	once         sync.Once
)

// Init configures the global logger. format is "json" (default) or "text".
func Init(level, format string) {
	once.Do(func() {
		globalLogger = New(os.Stdout, level, format)
		slog.SetDefault(globalLogger)
	})
}

// New builds a logger without touching the global one.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Get returns the global logger instance
func Get() *slog.Logger {
	if globalLogger == nil {
		Init("info", "json")
	}
	return globalLogger
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func With(args ...any) *slog.Logger {
	return Get().With(args...)
}

// ForGame scopes log lines to a single game partition.
func ForGame(gameKey string) *slog.Logger {
	return Get().With(slog.String("game", gameKey))
}

func LogError(ctx context.Context, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	args = append(args, slog.String("error", err.Error()))
	Get().ErrorContext(ctx, msg, args...)
}

// Set replaces the global logger.
func Set(l *slog.Logger) {
	once.Do(func() {})
	globalLogger = l
	slog.SetDefault(l)
}
