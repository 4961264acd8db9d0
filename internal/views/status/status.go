package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/remote-vibecode/muxterm/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Mode      string // "pull" or "push"
	Connected bool   // push feed is up, or the last poll succeeded
	FeedErr   string

	Sessions int
	Open     int
	Unread   int

	Active      string
	ActiveState string
	Focused     bool

	Width int
}

// New creates a status bar model.
func New(mode string) Model {
	return Model{Mode: mode}
}

// SetCounts updates the session counts.
func (m *Model) SetCounts(sessions, open, unread int) {
	m.Sessions = sessions
	m.Open = open
	m.Unread = unread
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var feedStr string
	switch {
	case m.Connected && m.Mode == "pull":
		feedStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Polling")
	case m.Connected:
		feedStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	case m.FeedErr != "":
		feedStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ " + m.FeedErr)
	default:
		feedStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("○ Connecting...")
	}

	counts := fmt.Sprintf("%d sessions  %d open  %d unread", m.Sessions, m.Open, m.Unread)

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := feedStr + sep + counts
	if m.Active != "" {
		state := m.ActiveState
		if state == "" {
			state = "idle"
		}
		active := m.Active + " " + lipgloss.NewStyle().Foreground(theme.StateColor(m.ActiveState)).Render(state)
		if m.Focused {
			active += lipgloss.NewStyle().Foreground(theme.ColorFocus).Render(" [input]")
		}
		content += sep + active
	}

	return lipgloss.NewStyle().
		Width(width).
		MaxHeight(3).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
