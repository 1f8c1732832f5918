package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned when an operation needs the controller
	// to be idle but a batch is processing.
	ErrSessionActive = errors.New("a batch is already processing")

	// ErrCancelled is returned by Start when Cancel or ClearFiles ended the
	// session before the engine returned.
	ErrCancelled = errors.New("batch cancelled")

	ErrUnknownFile    = errors.New("file is not in the list")
	ErrFileNotPending = errors.New("file is not pending")
)

// ValidationError reports an unmet precondition for starting a batch. No
// state changes when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// SubmissionError wraps an engine failure on the submit call. It ends the
// session in StateError.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "Processing failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ItemError describes one file that failed during a batch. It never aborts
// the batch.
type ItemError struct {
	Path    string
	Message string
}

func (e *ItemError) Error() string {
	return e.Path + ": " + e.Message
}
