// Package help renders the key binding reference as markdown.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/remote-vibecode/muxterm/internal/theme"
)

// Section is a titled group of bindings.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Model renders a set of sections. The glamour output is cached per width.
type Model struct {
	Sections []Section

	width    int
	rendered string
}

func New(sections ...Section) Model {
	return Model{Sections: sections}
}

// Markdown returns the reference as a markdown document.
func (m Model) Markdown() string {
	var b strings.Builder
	b.WriteString("# muxterm\n\n")
	for _, s := range m.Sections {
		fmt.Fprintf(&b, "## %s\n\n| Key | Action |\n| --- | --- |\n", s.Title)
		for _, kb := range s.Bindings {
			if !kb.Enabled() {
				continue
			}
			h := kb.Help()
			fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// View renders the reference inside a panel of the given width. Glamour
// failures fall back to the plain markdown.
func (m *Model) View(width int) string {
	innerW := max(width-4, 20)
	if m.rendered == "" || m.width != innerW {
		m.width = innerW
		m.rendered = render(m.Markdown(), innerW)
	}
	return lipgloss.NewStyle().
		Width(innerW).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.TrimRight(m.rendered, "\n") + "\n\n" + theme.StyleDimmed.Render(" esc:close"))
}

func render(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
