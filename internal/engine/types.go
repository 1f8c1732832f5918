// Package engine runs batch conversions. Local converts in-process with a
// worker pool; Process delegates to an external command speaking JSON lines.
// Both report through events and block in Submit until the batch ends.
package engine

import (
	"errors"
	"fmt"

	"crunch/internal/options"
)

// Request is one batch submission. Every event emitted for it carries
// Generation.
type Request struct {
	Generation uint64          `json:"generation"`
	Inputs     []string        `json:"input_paths"`
	OutputDir  string          `json:"output_dir"`
	Options    options.Options `json:"options"`
}

// Validate checks the request before any work starts.
func (r Request) Validate() error {
	var errs []error
	if len(r.Inputs) == 0 {
		errs = append(errs, errors.New("no input paths"))
	}
	if r.OutputDir == "" {
		errs = append(errs, errors.New("no output directory"))
	}
	if err := r.Options.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("options: %w", err))
	}
	return errors.Join(errs...)
}
