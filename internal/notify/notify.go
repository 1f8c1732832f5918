// Package notify delivers best-effort completion notices to the user.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"crunch/internal/stats"
)

const Title = "crunch"

// Notification is a message ready for delivery.
type Notification struct {
	Title string
	Body  string
}

// ForBatch builds the completion message for a finished batch.
func ForBatch(b stats.Batch) Notification {
	return Notification{
		Title: Title,
		Body:  fmt.Sprintf("%d images processed, %.1f%% smaller", b.SuccessfulFiles, b.OverallReductionPercent),
	}
}

// Notifier delivers notifications. Failures are reported as
// *NotificationError and must never affect a session.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationError wraps a delivery failure.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string {
	return "notification failed: " + e.Err.Error()
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Terminal writes a styled notice followed by a bell to w.
type Terminal struct {
	mu  sync.Mutex
	w   io.Writer
	bel bool
}

// NewTerminal returns a Terminal notifier. When bell is true an ASCII BEL is
// appended so terminals can raise their own alert.
func NewTerminal(w io.Writer, bell bool) *Terminal {
	return &Terminal{w: w, bel: bell}
}

func (t *Terminal) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return &NotificationError{Err: err}
	}

	line := titleStyle.Render(n.Title) + " " + bodyStyle.Render(n.Body)
	if t.bel {
		line += "\a"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintln(t.w, line); err != nil {
		return &NotificationError{Err: err}
	}
	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification) error

func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#88C0D0"))
	bodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E9F0"))
)
