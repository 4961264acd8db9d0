// Package debug renders the event log overlay: connection lifecycle, feed
// state, navigation and config reloads, newest at the bottom.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/remote-vibecode/muxterm/internal/theme"
)

const (
	maxEntries = 200
	stampWidth = len("15:04:05.000")
	kindWidth  = 4
)

var kindColors = map[string]lipgloss.Color{
	"conn": theme.ColorOpen,
	"feed": theme.ColorInfo,
	"err":  theme.ColorDanger,
	"nav":  theme.ColorConnecting,
	"cfg":  theme.ColorAccent,
}

type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model keeps the last maxEntries events. Offset counts entries hidden
// below the window; zero follows the tail.
type Model struct {
	Entries []Entry
	Offset  int
	now     func() time.Time
}

func New() Model {
	return Model{now: time.Now}
}

// Add records an event and jumps back to the tail.
func (m *Model) Add(kind, message string) {
	at := time.Now()
	if m.now != nil {
		at = m.now()
	}
	m.Entries = append(m.Entries, Entry{Time: at, Kind: kind, Message: message})
	if over := len(m.Entries) - maxEntries; over > 0 {
		m.Entries = append(m.Entries[:0], m.Entries[over:]...)
	}
	m.Offset = 0
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// window returns the entries that fit in rows lines at the current offset,
// plus how many are hidden above it.
func (m Model) window(rows int) ([]Entry, int) {
	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-rows, 0)
	return m.Entries[start:end], start
}

func (m Model) View(width, height int) string {
	inner := max(width-4, 20)
	rows := max(height-6, 3)

	header := theme.StyleHeader.Render(" EVENT LOG ")
	footer := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))
	panel := lipgloss.NewStyle().
		Width(inner).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(m.Entries) == 0 {
		empty := theme.StyleDimmed.Render("  No events recorded yet.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", empty, "", footer))
	}

	visible, above := m.window(rows)
	msgWidth := inner - stampWidth - kindWidth - 7
	var b strings.Builder
	for i, e := range visible {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(formatEntry(e, msgWidth))
	}

	var marks []string
	if above > 0 {
		marks = append(marks, fmt.Sprintf("↑ %d earlier", above))
	}
	if m.Offset > 0 {
		marks = append(marks, fmt.Sprintf("↓ %d more", m.Offset))
	}
	scroll := theme.StyleDimmed.Render(" " + strings.Join(marks, "  "))

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, header, b.String(), scroll, footer))
}

func formatEntry(e Entry, msgWidth int) string {
	color, ok := kindColors[e.Kind]
	if !ok {
		color = theme.ColorDimmed
	}
	kind := lipgloss.NewStyle().Foreground(color).Width(kindWidth).Render(e.Kind)
	msg := e.Message
	if msgWidth > 0 {
		msg = ansi.Truncate(msg, msgWidth, "…")
	}
	return theme.StyleDimmed.Render(e.Time.Format("15:04:05.000")) + " " + kind + " " + msg
}
