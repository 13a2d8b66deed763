package logger

import (
	"log/slog"
	"os"
)

var base = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Init configures the global logger. Production gets JSON output at info level,
// everything else gets human-readable text at debug level.
func Init(environment string) {
	if environment == "production" {
		base = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		return
	}

	base = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func Debug(msg string, args ...any) {
	base.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	base.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	base.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	base.Error(msg, args...)
}

// Fatal logs at error level and exits. Reserved for configuration-class
// failures at startup.
func Fatal(msg string, args ...any) {
	base.Error(msg, args...)
	os.Exit(1)
}
