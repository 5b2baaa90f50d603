package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pscheid92/hashpulse/internal/platform/correlation"
)

// Logger is the application-wide structured logger instance.
var Logger *slog.Logger

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels, defaulting to info.
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

// NewLogger builds a correlation-aware logger writing to w.
// format: "json" or "text" (defaults to "text")
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(correlation.NewHandler(handler))
}

// InitLogger initializes the global logger on stdout and installs it as slog's default.
// The CLI logs to stderr so task output on stdout stays machine readable.
func InitLogger(level, format string) {
	InitLoggerTo(os.Stdout, level, format)
}

func InitLoggerTo(w io.Writer, level, format string) {
	Logger = NewLogger(w, level, format)
	slog.SetDefault(Logger)
}
