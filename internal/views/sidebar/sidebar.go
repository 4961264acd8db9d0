// Package sidebar renders the session list and keeps its cursor and scroll
// position in step with the workspace.
package sidebar

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/remote-vibecode/muxterm/internal/mux"
	"github.com/remote-vibecode/muxterm/internal/session"
	"github.com/remote-vibecode/muxterm/internal/theme"
)

const (
	rowHeight   = 2
	chromeLines = 4 // border plus title and blank line
	settleDelta = 0.01
)

// Row is one listed session as last synced from the workspace.
type Row struct {
	Session session.Session
	State   string
	Unread  bool
	Active  bool
}

// Model holds the session list state.
type Model struct {
	Rows    []Row
	Cursor  int
	Width   int
	Height  int
	Focused bool

	// Scroll position in rows, animated towards target.
	pos    float64
	vel    float64
	target int
	spring harmonica.Spring

	now func() time.Time
}

func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(60), 8.0, 1.0),
		now:    time.Now,
	}
}

// Sync rebuilds the rows from a workspace snapshot. The cursor follows the
// session it was on; if that session is gone it stays at the same index.
func (m *Model) Sync(snap mux.Snapshot) {
	var cursorID string
	if m.Cursor < len(m.Rows) {
		cursorID = m.Rows[m.Cursor].Session.ID
	}
	rows := make([]Row, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		rows = append(rows, Row{
			Session: s,
			State:   snap.States[s.ID].String(),
			Unread:  snap.Unread[s.ID],
			Active:  s.ID == snap.Active,
		})
	}
	m.Rows = rows
	for i, r := range rows {
		if r.Session.ID == cursorID {
			m.Cursor = i
			break
		}
	}
	m.clamp()
}

// Selected returns the session under the cursor.
func (m Model) Selected() (session.Session, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Rows) {
		return session.Session{}, false
	}
	return m.Rows[m.Cursor].Session, true
}

func (m *Model) MoveUp()   { m.Cursor--; m.clamp() }
func (m *Model) MoveDown() { m.Cursor++; m.clamp() }

// Point moves the cursor onto the session with the given id, if listed.
func (m *Model) Point(id string) {
	for i, r := range m.Rows {
		if r.Session.ID == id {
			m.Cursor = i
			m.clamp()
			return
		}
	}
}

// Animating reports whether the scroll position is still settling.
func (m Model) Animating() bool {
	return math.Abs(m.pos-float64(m.target)) > settleDelta || math.Abs(m.vel) > settleDelta
}

// Animate advances the scroll spring one frame.
func (m *Model) Animate() {
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, float64(m.target))
	if !m.Animating() {
		m.pos, m.vel = float64(m.target), 0
	}
}

// Offset is the index of the first row drawn.
func (m Model) Offset() int {
	off := int(math.Round(m.pos))
	if off > len(m.Rows)-1 {
		off = len(m.Rows) - 1
	}
	if off < 0 {
		off = 0
	}
	return off
}

func (m Model) visibleRows() int {
	n := (m.Height - chromeLines) / rowHeight
	if n < 1 {
		n = 1
	}
	return n
}

func (m *Model) clamp() {
	if m.Cursor >= len(m.Rows) {
		m.Cursor = len(m.Rows) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	vis := m.visibleRows()
	if m.Cursor < m.target {
		m.target = m.Cursor
	}
	if m.Cursor >= m.target+vis {
		m.target = m.Cursor - vis + 1
	}
	if maxTarget := max(len(m.Rows)-vis, 0); m.target > maxTarget {
		m.target = maxTarget
	}
}

// Resize sets the panel size and keeps the cursor in view.
func (m *Model) Resize(width, height int) {
	m.Width, m.Height = width, height
	m.clamp()
}

// View renders the list.
func (m Model) View() string {
	style := theme.StyleBorder
	if m.Focused {
		style = theme.StyleFocusedBorder
	}
	innerW := max(m.Width-2, 8)
	innerH := max(m.Height-2, 1)

	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render(fmt.Sprintf(" SESSIONS (%d)", len(m.Rows))))
	b.WriteString("\n\n")

	if len(m.Rows) == 0 {
		b.WriteString(theme.StyleDimmed.Render(" No tmux sessions found"))
	} else {
		off := m.Offset()
		end := min(off+m.visibleRows(), len(m.Rows))
		lines := make([]string, 0, (end-off)*rowHeight)
		for i := off; i < end; i++ {
			lines = append(lines, m.renderRow(m.Rows[i], i == m.Cursor, innerW)...)
		}
		b.WriteString(strings.Join(lines, "\n"))
	}

	return style.Width(innerW).Height(innerH).MaxHeight(m.Height).Render(b.String())
}

func (m Model) renderRow(r Row, cursor bool, width int) []string {
	marker := "  "
	if cursor {
		marker = lipgloss.NewStyle().Foreground(theme.ColorFocus).Render("▸ ")
	}
	glyph := lipgloss.NewStyle().Foreground(theme.StateColor(r.State)).Render(theme.StateGlyph(r.State))

	badge := ""
	badgeW := 0
	if r.Unread {
		badge = " " + lipgloss.NewStyle().Foreground(theme.ColorUnread).Render("◆")
		badgeW = 2
	}

	nameW := max(width-4-badgeW, 1)
	name := runewidth.Truncate(r.Session.Name, nameW, "…")
	nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBright)
	if r.Active {
		nameStyle = theme.StyleSelected
	}

	meta := fmt.Sprintf("    %s  %s", r.Session.ShortID(), age(m.now(), r.Session.LastActivity))
	return []string{
		marker + glyph + " " + nameStyle.Render(name) + badge,
		theme.StyleDimmed.Render(runewidth.Truncate(meta, width, "…")),
	}
}

func age(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
