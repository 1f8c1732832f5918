// Package registry tracks the files submitted for conversion and the
// lifecycle of each one.
//
// A Registry is not safe for concurrent use. The session controller
// serializes every call.
package registry

import (
	"path/filepath"
)

// Status is the lifecycle state of a work item within a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether s ends the item's lifecycle for a session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Item is a single file tracked by the registry. Result fields are set only
// while Status is StatusCompleted, ErrorMessage only while StatusError.
type Item struct {
	Path              string
	DisplayName       string
	Status            Status
	OriginalSizeBytes int64
	OutputPath        string
	OutputSizeBytes   int64
	ReductionPercent  float64
	ErrorMessage      string
}

// Fields carries the result data merged into an item on a transition.
// Nil pointers leave the corresponding field untouched.
type Fields struct {
	OriginalSizeBytes *int64
	OutputPath        *string
	OutputSizeBytes   *int64
	ReductionPercent  *float64
	ErrorMessage      *string
}

// NewItem builds a pending item for path.
func NewItem(path string) Item {
	return Item{
		Path:        path,
		DisplayName: filepath.Base(path),
		Status:      StatusPending,
	}
}

// Registry holds work items keyed by path, in insertion order.
type Registry struct {
	items []Item
	index map[string]int
}

func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add inserts items whose path is not yet present and returns how many were
// accepted. Duplicates, within the batch or against existing items, are
// dropped silently.
func (r *Registry) Add(items ...Item) int {
	added := 0
	for _, item := range items {
		if item.Path == "" {
			continue
		}
		if _, exists := r.index[item.Path]; exists {
			continue
		}
		if item.DisplayName == "" {
			item.DisplayName = filepath.Base(item.Path)
		}
		if item.Status == "" {
			item.Status = StatusPending
		}
		r.index[item.Path] = len(r.items)
		r.items = append(r.items, item)
		added++
	}
	return added
}

// AddPaths is Add for bare paths.
func (r *Registry) AddPaths(paths ...string) int {
	items := make([]Item, 0, len(paths))
	for _, p := range paths {
		items = append(items, NewItem(p))
	}
	return r.Add(items...)
}

// Remove deletes the item at path and reports whether it existed.
func (r *Registry) Remove(path string) bool {
	idx, ok := r.index[path]
	if !ok {
		return false
	}
	r.items = append(r.items[:idx], r.items[idx+1:]...)
	delete(r.index, path)
	for i := idx; i < len(r.items); i++ {
		r.index[r.items[i].Path] = i
	}
	return true
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.items = nil
	r.index = make(map[string]int)
}

// UpdateStatus moves the item at path to status and merges fields into it.
// It reports whether the update was applied. Unknown paths and transitions
// the state machine does not allow are ignored.
func (r *Registry) UpdateStatus(path string, status Status, fields Fields) bool {
	idx, ok := r.index[path]
	if !ok {
		return false
	}
	item := &r.items[idx]
	if !CanTransition(item.Status, status) {
		return false
	}

	item.Status = status
	if fields.OriginalSizeBytes != nil {
		item.OriginalSizeBytes = *fields.OriginalSizeBytes
	}
	if fields.OutputPath != nil {
		item.OutputPath = *fields.OutputPath
	}
	if fields.OutputSizeBytes != nil {
		item.OutputSizeBytes = *fields.OutputSizeBytes
	}
	if fields.ReductionPercent != nil {
		item.ReductionPercent = *fields.ReductionPercent
	}
	if fields.ErrorMessage != nil {
		item.ErrorMessage = *fields.ErrorMessage
	}
	return true
}

// ResetStatuses returns every item to pending and strips result and error
// fields left by a previous session.
func (r *Registry) ResetStatuses() {
	for i := range r.items {
		r.items[i] = NewItem(r.items[i].Path)
	}
}

// Get returns a copy of the item at path.
func (r *Registry) Get(path string) (Item, bool) {
	idx, ok := r.index[path]
	if !ok {
		return Item{}, false
	}
	return r.items[idx], true
}

// Items returns a copy of all items in insertion order.
func (r *Registry) Items() []Item {
	out := make([]Item, len(r.items))
	copy(out, r.items)
	return out
}

// Paths returns all paths in insertion order.
func (r *Registry) Paths() []string {
	out := make([]string, len(r.items))
	for i, item := range r.items {
		out[i] = item.Path
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.items)
}

// Counts tallies items by status.
func (r *Registry) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, item := range r.items {
		counts[item.Status]++
	}
	return counts
}
