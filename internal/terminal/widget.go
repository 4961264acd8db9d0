// Package terminal provides the terminal widget used for each session: a
// vt10x virtual terminal for the live screen, a bounded plain-text
// scrollback, and the data/resize observer hooks the session manager wires
// to its connection.
package terminal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/hinshun/vt10x"

	"github.com/remote-vibecode/muxterm/internal/theme"
)

const (
	DefaultScrollback = 1000
	DefaultCols       = 80
	DefaultRows       = 24
	MinCols           = 10
	MinRows           = 3
)

// Config is the fixed widget configuration shared by every session.
type Config struct {
	Scrollback  int
	CursorBlink bool
	Palette     [16]lipgloss.Color
	Foreground  lipgloss.Color
	Background  lipgloss.Color
	Cursor      lipgloss.Color
}

// DefaultConfig returns the stock widget configuration.
func DefaultConfig() Config {
	return Config{
		Scrollback:  DefaultScrollback,
		CursorBlink: true,
		Palette:     theme.TerminalPalette,
		Foreground:  theme.ColorTermForeground,
		Background:  theme.ColorTermBackground,
		Cursor:      theme.ColorCursor,
	}
}

// Widget is one terminal view. All methods must be called from the UI loop.
type Widget struct {
	cfg     Config
	vt      vt10x.Terminal
	cols    int
	rows    int
	history *History
	scroll  viewport.Model

	scrolled bool
	visible  bool
	focused  bool
	blinkOn  bool

	onData   []func([]byte)
	onResize []func(cols, rows int)
}

// New creates a hidden, unfocused widget at the default geometry.
func New(cfg Config) *Widget {
	if cfg.Scrollback <= 0 {
		cfg.Scrollback = DefaultScrollback
	}
	return &Widget{
		cfg:     cfg,
		vt:      vt10x.New(vt10x.WithSize(DefaultCols, DefaultRows)),
		cols:    DefaultCols,
		rows:    DefaultRows,
		history: NewHistory(cfg.Scrollback),
		scroll:  viewport.New(DefaultCols, DefaultRows),
		blinkOn: true,
	}
}

// OnData registers a handler for user input typed into the widget.
func (w *Widget) OnData(fn func(data []byte)) {
	w.onData = append(w.onData, fn)
}

// OnResize registers a handler called after every fit.
func (w *Widget) OnResize(fn func(cols, rows int)) {
	w.onResize = append(w.onResize, fn)
}

// Write renders output into the terminal and its scrollback.
func (w *Widget) Write(p []byte) (int, error) {
	w.history.Write(string(p))
	return w.vt.Write(p)
}

// WriteString is Write for strings.
func (w *Widget) WriteString(s string) {
	_, _ = w.Write([]byte(s))
}

// Input delivers user input to the OnData handlers. Typing snaps a scrolled
// view back to the live screen.
func (w *Widget) Input(data []byte) {
	if len(data) == 0 {
		return
	}
	w.scrolled = false
	for _, fn := range w.onData {
		fn(data)
	}
}

// Fit sizes the terminal to a content area measured in cells and notifies
// the OnResize handlers, even when the geometry did not change.
func (w *Widget) Fit(width, height int) (cols, rows int) {
	cols, rows = max(width, MinCols), max(height, MinRows)
	if cols != w.cols || rows != w.rows {
		w.vt.Resize(cols, rows)
		w.cols, w.rows = cols, rows
		w.scroll.Width, w.scroll.Height = cols, rows
	}
	for _, fn := range w.onResize {
		fn(cols, rows)
	}
	return cols, rows
}

// Size returns the current geometry.
func (w *Widget) Size() (cols, rows int) { return w.cols, w.rows }

func (w *Widget) Show()         { w.visible = true }
func (w *Widget) Hide()         { w.visible = false; w.focused = false }
func (w *Widget) Visible() bool { return w.visible }

// Focus gives the widget keyboard focus. Hidden widgets cannot hold focus.
func (w *Widget) Focus() {
	if w.visible {
		w.focused = true
		w.blinkOn = true
	}
}

func (w *Widget) Blur()         { w.focused = false }
func (w *Widget) Focused() bool { return w.focused }

// Blink advances the cursor blink phase.
func (w *Widget) Blink() {
	if w.cfg.CursorBlink {
		w.blinkOn = !w.blinkOn
	}
}

// History exposes the scrollback buffer.
func (w *Widget) History() *History { return w.history }

// ScrollUp moves the view n lines into the scrollback.
func (w *Widget) ScrollUp(n int) {
	if !w.scrolled {
		w.scroll.SetContent(strings.Join(w.history.Lines(), "\n"))
		w.scroll.GotoBottom()
		w.scrolled = true
	}
	w.scroll.SetYOffset(w.scroll.YOffset - n)
}

// ScrollDown moves the view n lines toward the live screen.
func (w *Widget) ScrollDown(n int) {
	if !w.scrolled {
		return
	}
	w.scroll.SetYOffset(w.scroll.YOffset + n)
	if w.scroll.AtBottom() {
		w.scrolled = false
	}
}

// Scrolled reports whether the scrollback view is showing.
func (w *Widget) Scrolled() bool { return w.scrolled }

// Screen returns the live screen as plain text, one line per row with
// trailing blanks trimmed.
func (w *Widget) Screen() string {
	lines := make([]string, w.rows)
	for y := 0; y < w.rows; y++ {
		var b strings.Builder
		for x := 0; x < w.cols; x++ {
			ch := w.vt.Cell(x, y).Char
			if ch == 0 {
				ch = ' '
			}
			b.WriteRune(ch)
		}
		lines[y] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// View renders the widget. A hidden widget renders nothing.
func (w *Widget) View() string {
	if !w.visible {
		return ""
	}
	if w.scrolled {
		return w.scroll.View()
	}
	return w.renderScreen()
}

func (w *Widget) renderScreen() string {
	cursor := w.vt.Cursor()
	showCursor := w.focused && (w.blinkOn || !w.cfg.CursorBlink)

	var b strings.Builder
	var lastFG, lastBG vt10x.Color = vt10x.DefaultFG, vt10x.DefaultBG
	b.WriteString(w.sgr(lastFG, lastBG))
	for y := 0; y < w.rows; y++ {
		for x := 0; x < w.cols; x++ {
			cell := w.vt.Cell(x, y)
			if cell.FG != lastFG || cell.BG != lastBG {
				b.WriteString(w.sgr(cell.FG, cell.BG))
				lastFG, lastBG = cell.FG, cell.BG
			}
			ch := cell.Char
			if ch == 0 {
				ch = ' '
			}
			if showCursor && x == cursor.X && y == cursor.Y {
				b.WriteString("\x1b[7m")
				b.WriteRune(ch)
				b.WriteString("\x1b[27m")
				continue
			}
			b.WriteRune(ch)
		}
		if y < w.rows-1 {
			b.WriteString("\x1b[0m\n")
			b.WriteString(w.sgr(lastFG, lastBG))
		}
	}
	b.WriteString("\x1b[0m")
	return b.String()
}

// sgr builds the escape sequence selecting fg and bg.
func (w *Widget) sgr(fg, bg vt10x.Color) string {
	return "\x1b[0;" + w.colorParam(fg, w.cfg.Foreground, 38) + ";" + w.colorParam(bg, w.cfg.Background, 48) + "m"
}

func (w *Widget) colorParam(c vt10x.Color, def lipgloss.Color, base int) string {
	switch {
	case c == vt10x.DefaultFG || c == vt10x.DefaultBG:
		return rgbParam(base, def)
	case c < 16:
		return rgbParam(base, w.cfg.Palette[c])
	case c < 256:
		return strconv.Itoa(base) + ";5;" + strconv.Itoa(int(c))
	case uint32(c) < 1<<24:
		return fmt.Sprintf("%d;2;%d;%d;%d", base, int(c)>>16&0xff, int(c)>>8&0xff, int(c)&0xff)
	default:
		return rgbParam(base, def)
	}
}

// rgbParam renders a "#rrggbb" color as a truecolor SGR parameter.
func rgbParam(base int, c lipgloss.Color) string {
	var r, g, b int
	if _, err := fmt.Sscanf(string(c), "#%02x%02x%02x", &r, &g, &b); err != nil {
		return strconv.Itoa(base + 1)
	}
	return fmt.Sprintf("%d;2;%d;%d;%d", base, r, g, b)
}
