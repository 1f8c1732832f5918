package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crunch/internal/display"
	"crunch/internal/registry"
	"crunch/internal/session"
)

// recentItems is how many finished files stay listed under the bar.
const recentItems = 5

type Model struct {
	updates  <-chan session.View
	cancel   func()
	started  time.Time
	width    int
	bar      progress.Model
	view     session.View
	recent   []registry.Item
	seen     map[string]bool
	aborting bool
	quitting bool
}

type doneMsg struct{}

type updateMsg session.View

// NewModel renders views received on updates until the channel closes.
// cancel is called once when the user asks to stop.
func NewModel(updates <-chan session.View, cancel func()) Model {
	return Model{
		updates: updates,
		cancel:  cancel,
		started: time.Now(),
		bar:     progress.New(progress.WithDefaultGradient()),
		seen:    make(map[string]bool),
	}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.apply(session.View(msg))
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.aborting && m.cancel != nil {
				m.aborting = true
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(60, max(20, msg.Width-10))
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) apply(v session.View) {
	m.view = v
	for _, item := range v.Items {
		if item.Status.Terminal() && !m.seen[item.Path] {
			m.seen[item.Path] = true
			m.recent = append(m.recent, item)
		}
	}
	if len(m.recent) > recentItems {
		m.recent = m.recent[len(m.recent)-recentItems:]
	}
}

// View returns the last frame. The final summary is printed by the caller
// after the program exits.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	v := m.view
	total := len(v.Items)
	done := v.Counts[registry.StatusCompleted] + v.Counts[registry.StatusError]
	ratio := 0.0
	if total > 0 {
		ratio = min(1, float64(done)/float64(total))
	}

	var saved int64
	for _, item := range v.Items {
		if item.Status == registry.StatusCompleted {
			saved += item.OriginalSizeBytes - item.OutputSizeBytes
		}
	}

	lines := []string{
		titleStyle.Render("crunch") + " " + lipgloss.NewStyle().Foreground(stateColor(v.State)).Render(string(v.State)),
		labelStyle.Render(fmt.Sprintf("Files: %d/%d", done, total)) +
			dimStyle.Render(fmt.Sprintf("  errors:%d", v.Counts[registry.StatusError])),
		labelStyle.Render("Bytes saved: " + display.FormatBytes(saved)),
	}
	if v.Progress != nil {
		lines = append(lines, dimStyle.Render("Current: "+filepath.Base(v.Progress.CurrentFile)))
	}
	lines = append(lines,
		dimStyle.Render("Elapsed: "+display.FormatDuration(time.Since(m.started))),
		m.bar.ViewAs(ratio),
	)
	for _, item := range m.recent {
		lines = append(lines, renderItem(item))
	}
	switch {
	case v.Done():
		lines = append(lines, dimStyle.Render("Finished"))
	case m.aborting:
		lines = append(lines, warnStyle.Render("Cancelling; waiting for the engine to stop..."))
	default:
		lines = append(lines, dimStyle.Render("q to cancel"))
	}
	return strings.Join(lines, "\n")
}

func renderItem(item registry.Item) string {
	if item.Status == registry.StatusError {
		return statusMark(item.Status) + item.DisplayName + dimStyle.Render("  "+item.ErrorMessage)
	}
	return statusMark(item.Status) + item.DisplayName +
		dimStyle.Render(fmt.Sprintf("  %s → %s (%s)",
			display.FormatBytes(item.OriginalSizeBytes),
			display.FormatBytes(item.OutputSizeBytes),
			display.FormatPercent(item.ReductionPercent)))
}

func listenForUpdates(updates <-chan session.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(v)
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)
	errorStyle = lipgloss.NewStyle().Foreground(ColorError)
)
