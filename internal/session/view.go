package session

import (
	"crunch/internal/events"
	"crunch/internal/options"
	"crunch/internal/registry"
	"crunch/internal/stats"
)

// State is what the whole file list is doing.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// View is an immutable copy of the controller state for rendering.
type View struct {
	SessionID  string
	Generation uint64
	State      State
	Items      []registry.Item
	Counts     map[registry.Status]int
	Progress   *events.Progress
	Stats      *stats.Batch
	Error      string
	OutputDir  string
	Options    options.Options
}

// Done reports whether the view shows a finished batch.
func (v View) Done() bool {
	return v.State == StateCompleted || v.State == StateError
}
