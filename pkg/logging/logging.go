// Package logging configures structured logging for the server.
//
// Usage:
//
//	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat) // also installs slog.Default
//
// The text format is colored with tint for terminals; the json format is
// meant for log collectors.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup builds a logger writing to stderr and makes it the slog default.
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stderr, ParseLevel(level), format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w. Unknown formats fall back to text.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
		NoColor:    !isTerminal(w),
	}))
}

// ParseLevel maps debug, info, warn and error to a slog level (default: info).
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
