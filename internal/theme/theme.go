// Package theme provides the Lip Gloss color palette and reusable styles
// for the muxterm TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Terminal palette. Index order follows the ANSI 16-colour table.
var TerminalPalette = [16]lipgloss.Color{
	"#000000", // black
	"#ff6b6b", // red
	"#51cf66", // green
	"#ffd43b", // yellow
	"#339af0", // blue
	"#cc5de8", // magenta
	"#22b8cf", // cyan
	"#ffffff", // white
	"#495057", // bright black
	"#ff8787", // bright red
	"#69db7c", // bright green
	"#ffe066", // bright yellow
	"#4dabf7", // bright blue
	"#da77f2", // bright magenta
	"#66d9e8", // bright cyan
	"#ffffff", // bright white
}

// Terminal defaults.
var (
	ColorTermBackground = lipgloss.Color("#000000")
	ColorTermForeground = lipgloss.Color("#ffffff")
	ColorCursor         = lipgloss.Color("#CC785C")
)

// Connection state colors.
var (
	ColorConnecting = lipgloss.Color("#d97706")
	ColorOpen       = lipgloss.Color("#22c55e")
	ColorClosed     = lipgloss.Color("#6b7280")
	ColorUnread     = lipgloss.Color("#CC785C")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorFocus   = lipgloss.Color("#CC785C")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorInfo    = lipgloss.Color("#2563eb")
	ColorAccent  = lipgloss.Color("#7c3aed")
)

// StateColor returns the color for a connection state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "connecting":
		return ColorConnecting
	case "open":
		return ColorOpen
	case "closed":
		return ColorClosed
	default:
		return ColorDimmed
	}
}

// StateGlyph returns a glyph for a connection state name. Sessions that were
// never selected have no connection and render a dot.
func StateGlyph(state string) string {
	switch state {
	case "connecting":
		return "◌"
	case "open":
		return "●"
	case "closed":
		return "✗"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleFocusedBorder = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(ColorFocus)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
