// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/use-agent/xfeed/config"
)

// Init installs the default slog logger described by cfg. fallbackOutput is
// used when cfg.Output is empty: the service logs to stdout, the CLI
// discards so stderr only ever carries its error object.
func Init(cfg config.LogConfig, fallbackOutput string) *slog.Logger {
	output := cfg.Output
	if output == "" {
		output = fallbackOutput
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	w := Writer(output)

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
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

// Writer resolves an output name to a writer.
func Writer(output string) io.Writer {
	switch output {
	case "stderr":
		return os.Stderr
	case "discard", "none":
		return io.Discard
	default:
		return os.Stdout
	}
}
