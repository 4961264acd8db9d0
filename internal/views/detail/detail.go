// Package detail renders the session info flyout overlay.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/remote-vibecode/muxterm/internal/mux"
	"github.com/remote-vibecode/muxterm/internal/session"
	"github.com/remote-vibecode/muxterm/internal/theme"
)

const (
	panelWidth = 64
	labelWidth = 14
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleError = lipgloss.NewStyle().
			Foreground(theme.ColorDanger)
)

// Model holds the state for the detail overlay.
type Model struct {
	Session  session.Session
	Instance *mux.Instance // nil until the session is first selected
	Unread   bool
	Known    bool // false once the session left the catalog
}

// View renders the detail panel. Returns an empty string if no session is set.
func (m Model) View() string {
	if m.Session.ID == "" {
		return ""
	}
	return stylePanel.Width(panelWidth).Render(m.renderInner())
}

func (m Model) renderInner() string {
	s := m.Session
	var b strings.Builder

	b.WriteString(styleTitle.Render("Session: "+ansi.Truncate(s.Name, panelWidth-14, "…")) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "ID", ansi.Truncate(s.ID, 40, "…"))
	if !s.LastActivity.IsZero() {
		writeRow(&b, "Last Active", formatAge(s.LastActivity))
	}
	if !m.Known {
		writeRow(&b, "Catalog", styleError.Render("no longer listed"))
	}
	if m.Unread {
		writeRow(&b, "Unread", lipgloss.NewStyle().Foreground(theme.ColorUnread).Render("yes"))
	}

	b.WriteString("\n")

	inst := m.Instance
	if inst == nil {
		writeRow(&b, "Terminal", "not opened")
	} else {
		state := inst.State().String()
		if state == "" {
			state = "none"
		}
		writeRow(&b, "State", lipgloss.NewStyle().Foreground(theme.StateColor(state)).Render(theme.StateGlyph(state)+" "+state))
		writeRow(&b, "Attempts", fmt.Sprintf("%d", inst.Attempts()))
		cols, rows := inst.Widget.Size()
		writeRow(&b, "Geometry", fmt.Sprintf("%dx%d", cols, rows))

		if c := inst.Connection(); c != nil {
			writeRow(&b, "Connection", c.ID[:8])
			if !c.OpenedAt().IsZero() {
				writeRow(&b, "Opened", formatAge(c.OpenedAt()))
			}
			if !c.LastPong().IsZero() {
				writeRow(&b, "Last Pong", formatAge(c.LastPong()))
			}
			writeRow(&b, "Frames Sent", fmt.Sprintf("%d", c.Sent()))
			if err := c.Err(); err != nil {
				b.WriteString("\n")
				b.WriteString(styleError.Render(ansi.Truncate("Error: "+err.Error(), panelWidth-4, "…")) + "\n")
			}
		}
	}

	b.WriteString("\n")
	footer := "[esc] close"
	if inst != nil && inst.State() == mux.StateClosed {
		footer = "[r] reconnect  [esc] close"
	}
	b.WriteString(styleFooter.Render(footer))

	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm ago", h, m)
	}
}
