// Package events bridges the engine's named asynchronous events to typed
// callbacks. Subscriptions are handles that can be released exactly once.
package events

import (
	"time"

	"crunch/internal/stats"
)

// Name identifies an event stream.
type Name string

const (
	NameProgress Name = "processing-progress"
	NameResult   Name = "processing-result"
	NameComplete Name = "processing-complete"
)

// Event is one notification from the engine. Generation identifies the batch
// run that produced it.
type Event struct {
	ID         string    `json:"id"`
	Name       Name      `json:"name"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload"`
}

// Progress reports the item the engine is working on. Percent comes from the
// engine as-is.
type Progress struct {
	Current     int     `json:"current"`
	Total       int     `json:"total"`
	CurrentFile string  `json:"current_file"`
	Percent     float64 `json:"percent"`
}

// ItemResult is the outcome for a single input file.
type ItemResult struct {
	OriginalPath     string  `json:"original_path"`
	OutputPath       string  `json:"output_path"`
	OriginalSize     int64   `json:"original_size"`
	OutputSize       int64   `json:"output_size"`
	ReductionPercent float64 `json:"reduction_percent"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
}

// StatsResult converts r for the statistics calculator.
func (r ItemResult) StatsResult() stats.Result {
	return stats.Result{
		OriginalSize:     r.OriginalSize,
		OutputSize:       r.OutputSize,
		ReductionPercent: r.ReductionPercent,
		Success:          r.Success,
	}
}

// Complete is the terminal event payload.
type Complete = stats.Batch

// Handler receives events in delivery order, one at a time.
type Handler func(Event)
