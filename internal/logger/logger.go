package logger

import (
	"log/slog"
	"os"
)

// Logger is the process-wide structured logger.
var Logger *slog.Logger

// Init configures the global logger for the given environment.
// Production logs JSON at info level; everything else logs
// human-readable text at debug level.
func Init(env string) {
	var handler slog.Handler

	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func ensure() *slog.Logger {
	if Logger == nil {
		Init("development")
	}
	return Logger
}

// With returns a logger carrying additional key-value pairs.
func With(args ...any) *slog.Logger {
	return ensure().With(args...)
}

func Debug(msg string, args ...any) {
	ensure().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	ensure().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	ensure().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	ensure().Error(msg, args...)
}
