package mock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const defaultTick = 500 * time.Millisecond

// scratchSession comes and goes to exercise catalog churn.
const scratchSession = "scratch"

type mockTerminal struct {
	name    string
	pattern string
	lines   []string
	next    int
}

// Generator drives fake activity: scripted output on each session and a
// periodically refreshed catalog on the push feed.
type Generator struct {
	server   *Server
	interval time.Duration
	rng      *rand.Rand
	now      func() time.Time
	sessions []*mockTerminal
	tick     int
}

func NewGenerator(server *Server) *Generator {
	return &Generator{
		server:   server,
		interval: defaultTick,
		rng:      rand.New(rand.NewSource(1)),
		now:      time.Now,
	}
}

// SessionID derives a stable id for a session name so restarts of the mock
// keep the same ids.
func SessionID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tmux:"+name)).String()
}

// DefaultSessions returns the catalog the mock starts with.
func DefaultSessions(now time.Time) []Session {
	names := []string{"claude-refactor", "build", "api logs", "café ☕"}
	out := make([]Session, 0, len(names))
	for i, name := range names {
		at := now.Add(-time.Duration(i) * time.Minute)
		out = append(out, Session{ID: SessionID(name), Name: name, CreatedAt: at.Add(-time.Hour), LastCapture: at})
	}
	return out
}

// Start seeds the server with the default catalog and begins ticking.
func (g *Generator) Start(ctx context.Context) {
	now := g.now()
	g.sessions = []*mockTerminal{
		{name: "claude-refactor", pattern: "steady", lines: []string{
			"\x1b[38;5;75m●\x1b[0m Reading internal/mux/workspace.go",
			"\x1b[38;5;75m●\x1b[0m Editing internal/mux/resize.go",
			"  \x1b[32m+\x1b[0m func ContentSize(paneW, paneH int) (int, int)",
			"\x1b[38;5;75m●\x1b[0m Running go test ./...",
			"  \x1b[32mok\x1b[0m  \tmuxterm/internal/mux\t0.412s",
		}},
		{name: "build", pattern: "burst", lines: []string{
			"[1/4] compiling gotty codec",
			"[2/4] compiling terminal widget",
			"[3/4] linking muxterm",
			"[4/4] \x1b[1;32mdone\x1b[0m",
		}},
		{name: "api logs", pattern: "quiet", lines: []string{
			"GET /api/v1/tmux/sessions 200 1.2ms",
			"GET /gotty/build 101 0.4ms",
			"\x1b[33mWARN\x1b[0m slow client dropped",
		}},
		{name: "café ☕", pattern: "quiet", lines: []string{
			"日本語のテキスト 😀",
			"naïve façade résumé",
		}},
	}
	g.server.SetSessions(DefaultSessions(now))
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Tick()
		}
	}
}

// Tick advances every session one step and republishes the catalog.
func (g *Generator) Tick() {
	g.tick++
	now := g.now()
	for _, mt := range g.sessions {
		if !g.due(mt) {
			continue
		}
		n := 1
		if mt.pattern == "burst" {
			n = len(mt.lines)
		}
		for i := 0; i < n; i++ {
			line := mt.lines[mt.next%len(mt.lines)]
			mt.next++
			g.server.Write(mt.name, []byte(line+"\r\n"))
		}
		g.server.Touch(mt.name, now)
	}
	g.churn(now)
	g.server.Publish()
}

func (g *Generator) due(mt *mockTerminal) bool {
	switch mt.pattern {
	case "steady":
		return true
	case "burst":
		return g.tick%6 == 0
	default:
		return g.rng.Intn(8) == 0
	}
}

// churn adds the scratch session for a while every 40 ticks.
func (g *Generator) churn(now time.Time) {
	phase := g.tick % 40
	if phase != 20 && phase != 0 {
		return
	}
	sessions := g.server.Sessions()
	kept := sessions[:0]
	for _, s := range sessions {
		if s.Name != scratchSession {
			kept = append(kept, s)
		}
	}
	if phase == 20 {
		kept = append(kept, Session{
			ID:          SessionID(fmt.Sprintf("%s-%d", scratchSession, g.tick/40)),
			Name:        scratchSession,
			CreatedAt:   now,
			LastCapture: now,
		})
	}
	g.server.replace(kept)
}
