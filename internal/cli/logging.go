package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/fuser/internal/config"
)

// newLogger builds the process logger from the logging section. Verbose
// forces debug level.
func newLogger(cfg config.LoggingConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	}
	return nil, fmt.Errorf("logging.format: unknown format %q", cfg.Format)
}
