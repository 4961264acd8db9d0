package terminal

import (
	tea "github.com/charmbracelet/bubbletea"
)

var keySequences = map[tea.KeyType]string{
	tea.KeyUp:         "\x1b[A",
	tea.KeyDown:       "\x1b[B",
	tea.KeyRight:      "\x1b[C",
	tea.KeyLeft:       "\x1b[D",
	tea.KeyShiftTab:   "\x1b[Z",
	tea.KeyHome:       "\x1b[H",
	tea.KeyEnd:        "\x1b[F",
	tea.KeyPgUp:       "\x1b[5~",
	tea.KeyPgDown:     "\x1b[6~",
	tea.KeyDelete:     "\x1b[3~",
	tea.KeyInsert:     "\x1b[2~",
	tea.KeySpace:      " ",
	tea.KeyCtrlUp:     "\x1b[1;5A",
	tea.KeyCtrlDown:   "\x1b[1;5B",
	tea.KeyCtrlRight:  "\x1b[1;5C",
	tea.KeyCtrlLeft:   "\x1b[1;5D",
	tea.KeyShiftUp:    "\x1b[1;2A",
	tea.KeyShiftDown:  "\x1b[1;2B",
	tea.KeyShiftRight: "\x1b[1;2C",
	tea.KeyShiftLeft:  "\x1b[1;2D",
	tea.KeyF1:         "\x1bOP",
	tea.KeyF2:         "\x1bOQ",
	tea.KeyF3:         "\x1bOR",
	tea.KeyF4:         "\x1bOS",
	tea.KeyF5:         "\x1b[15~",
	tea.KeyF6:         "\x1b[17~",
	tea.KeyF7:         "\x1b[18~",
	tea.KeyF8:         "\x1b[19~",
	tea.KeyF9:         "\x1b[20~",
	tea.KeyF10:        "\x1b[21~",
	tea.KeyF11:        "\x1b[23~",
	tea.KeyF12:        "\x1b[24~",
}

// KeyBytes translates a key press into the bytes a terminal would send for
// it. Unknown keys translate to nil.
func KeyBytes(msg tea.KeyMsg) []byte {
	var out []byte
	switch {
	case msg.Type == tea.KeyRunes:
		out = []byte(string(msg.Runes))
	case msg.Type >= 0 && msg.Type <= 31, msg.Type == tea.KeyBackspace:
		// Control characters, including enter, tab and escape, map to their
		// own code point.
		out = []byte{byte(msg.Type)}
	default:
		seq, ok := keySequences[msg.Type]
		if !ok {
			return nil
		}
		out = []byte(seq)
	}
	if msg.Alt {
		out = append([]byte{0x1b}, out...)
	}
	return out
}
