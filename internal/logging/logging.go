// Package logging builds the process-wide slog handler.
//
// Interactive runs get colorized terminal output. When a log file is
// configured, records go to a size-rotated JSON file instead so they stay
// machine-readable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options control handler construction.
type Options struct {
	// Level is the minimum record level: debug, info, warn, or error.
	Level string

	// File, when set, routes records to a rotated JSON log file instead
	// of stderr.
	File string

	// NoColor disables ANSI colors even on a terminal.
	NoColor bool
}

// New builds a logger per the options. It never fails; an unknown level
// falls back to info.
func New(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)

	if opts.File != "" {
		w := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	var w io.Writer = colorable.NewColorable(os.Stderr)
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    opts.NoColor || !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
