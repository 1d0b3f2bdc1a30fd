package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the process logger from LOG_FORMAT: "json" emits JSON
// records for log shippers, any other value (including the "pretty"
// default) emits text for reading a local palisade instance.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
