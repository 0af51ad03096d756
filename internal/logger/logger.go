// internal/logger/logger.go
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the process-wide logger. It discards output until Init runs so
// packages may log unconditionally, including under test.
var Log = slog.New(slog.NewTextHandler(io.Discard, nil))

// Init installs a handler writing to stdout at the given level
// ("debug", "info", "warn", "error") in the given format ("text", "json").
func Init(level, format string) {
	Log = New(os.Stdout, level, format)
	slog.SetDefault(Log)
}

func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }

func Info(msg string, args ...any) { Log.Info(msg, args...) }

func Warn(msg string, args ...any) { Log.Warn(msg, args...) }

func Error(msg string, args ...any) { Log.Error(msg, args...) }
