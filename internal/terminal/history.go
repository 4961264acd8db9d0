package terminal

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// History keeps the last N completed lines of output as plain text. The live
// screen is owned by the virtual terminal; History is what scrolls off it.
type History struct {
	lines   []string
	head    int // index of the oldest line once the ring is full
	full    bool
	partial strings.Builder
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{lines: make([]string, 0, capacity)}
}

// Write appends raw terminal output. Escape sequences are stripped and
// carriage returns keep only the text written after them.
func (h *History) Write(s string) {
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			h.partial.WriteString(s)
			return
		}
		h.partial.WriteString(s[:i])
		h.push(clean(h.partial.String()))
		h.partial.Reset()
		s = s[i+1:]
	}
}

func clean(line string) string {
	line = ansi.Strip(line)
	line = strings.TrimRight(line, "\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}
	return line
}

func (h *History) push(line string) {
	if !h.full {
		h.lines = append(h.lines, line)
		if len(h.lines) == cap(h.lines) {
			h.full = true
		}
		return
	}
	h.lines[h.head] = line
	h.head = (h.head + 1) % len(h.lines)
}

// Len returns the number of retained lines.
func (h *History) Len() int { return len(h.lines) }

// Cap returns the maximum number of retained lines.
func (h *History) Cap() int { return cap(h.lines) }

// Lines returns the retained lines oldest first.
func (h *History) Lines() []string {
	out := make([]string, 0, len(h.lines))
	if !h.full {
		return append(out, h.lines...)
	}
	out = append(out, h.lines[h.head:]...)
	return append(out, h.lines[:h.head]...)
}
