package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	defaultLogger *slog.Logger
	mu            sync.Mutex
)

// Init configures the process logger. Production gets JSON on stdout, anything
// else gets the text handler.
func Init(env string) {
	InitWithLevel(env, "")
}

func InitWithLevel(env, level string) {
	mu.Lock()
	defer mu.Unlock()

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)})
	}

	defaultLogger = slog.New(handler).With("service", "sonlife-giving")
	slog.SetDefault(defaultLogger)
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func LoggerWrapper() *slog.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
		return LoggerWrapper()
	}
	return l
}
