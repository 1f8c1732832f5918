// Package logging builds the root hclog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

type Options struct {
	Level string
	JSON  bool
	// File, when set, receives the log instead of Output.
	File   string
	Output io.Writer
}

// New returns the root logger and a close function for any opened file.
func New(name string, opts Options) (hclog.Logger, func() error, error) {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		return nil, nil, fmt.Errorf("unknown log level %q", opts.Level)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	closeFn := func() error { return nil }
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeFn = f.Close
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
		Color:      hclog.AutoColor,
	})
	return logger, closeFn, nil
}

// Quiet raises logger to warn unless it already logs at a higher level. The
// full-screen progress view uses it so info lines do not tear the display.
func Quiet(logger hclog.Logger) {
	if logger.GetLevel() < hclog.Warn {
		logger.SetLevel(hclog.Warn)
	}
}
