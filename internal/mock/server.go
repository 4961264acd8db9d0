// Package mock is an in-process stand-in for the tmux session server: the
// discovery endpoints (pull and push) and a gotty endpoint per session that
// echoes input back as output. It backs --mock runs and the client tests.
package mock

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/remote-vibecode/muxterm/internal/gotty"
	"github.com/remote-vibecode/muxterm/internal/session"
)

// Session is a mock tmux session.
type Session struct {
	ID          string
	Name        string
	CreatedAt   time.Time
	LastCapture time.Time
}

// Geometry is a terminal size requested by a client.
type Geometry struct {
	Cols, Rows int
}

// pushRecord is the push feed's record shape: unix seconds, not RFC 3339.
type pushRecord struct {
	ID          string `json:"id"`
	SessionName string `json:"session_name"`
	CreatedAt   int64  `json:"created_at"`
	LastCapture int64  `json:"last_capture"`
}

type Server struct {
	log      *log.Logger
	upgrader websocket.Upgrader
	router   chi.Router
	feed     *hub

	mu       sync.RWMutex
	sessions []Session
	ttys     map[string]*hub
	inputs   map[string][]byte
	resizes  map[string][]Geometry
}

func NewServer(logger *log.Logger, sessions []Session) *Server {
	s := &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		feed:     newHub(logger.With("hub", "feed")),
		sessions: append([]Session(nil), sessions...),
		ttys:     make(map[string]*hub),
		inputs:   make(map[string][]byte),
		resizes:  make(map[string][]Geometry),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tmux/sessions", s.handleList)
		r.Get("/sessions/ws", s.handleFeed)
	})
	r.Get("/gotty/{name}", s.handleGotty)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Sessions returns a copy of the current catalog.
func (s *Server) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Session(nil), s.sessions...)
}

// SetSessions replaces the catalog and pushes it to feed subscribers.
func (s *Server) SetSessions(sessions []Session) {
	s.replace(sessions)
	s.Publish()
}

func (s *Server) replace(sessions []Session) {
	s.mu.Lock()
	s.sessions = append([]Session(nil), sessions...)
	s.mu.Unlock()
}

// Touch records activity on a session.
func (s *Server) Touch(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].Name == name {
			s.sessions[i].LastCapture = at
		}
	}
}

// Publish pushes the catalog to every feed subscriber.
func (s *Server) Publish() int {
	return s.feed.broadcast(s.pushPayload())
}

// Write sends raw output to every terminal attached to name and returns how
// many received it.
func (s *Server) Write(name string, raw []byte) int {
	return s.tty(name).broadcast(gotty.Output(raw))
}

// WriteFrame sends an already encoded frame, valid or not.
func (s *Server) WriteFrame(name string, frame []byte) int {
	return s.tty(name).broadcast(frame)
}

// Input returns everything typed into the named session so far.
func (s *Server) Input(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.inputs[name])
}

// Resizes returns every geometry requested for the named session.
func (s *Server) Resizes(name string) []Geometry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Geometry(nil), s.resizes[name]...)
}

// Attached returns the number of terminals connected to name.
func (s *Server) Attached(name string) int { return s.tty(name).len() }

// Subscribers returns the number of push feed clients.
func (s *Server) Subscribers() int { return s.feed.len() }

// Hangup closes every terminal of name with a normal close frame.
func (s *Server) Hangup(name string) { s.tty(name).closeAll() }

// Close disconnects every client.
func (s *Server) Close() {
	s.feed.closeAll()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.ttys {
		h.closeAll()
	}
}

func (s *Server) tty(name string) *hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.ttys[name]
	if !ok {
		h = newHub(s.log.With("tty", name))
		s.ttys[name] = h
	}
	return h
}

func (s *Server) known(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ss := range s.sessions {
		if ss.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) pushPayload() []byte {
	sessions := s.Sessions()
	records := make([]pushRecord, 0, len(sessions))
	for _, ss := range sessions {
		records = append(records, pushRecord{
			ID:          ss.ID,
			SessionName: ss.Name,
			CreatedAt:   ss.CreatedAt.Unix(),
			LastCapture: ss.LastCapture.Unix(),
		})
	}
	data, err := json.Marshal(map[string]any{"type": "sessions", "sessions": records})
	if err != nil {
		s.log.Error("marshal sessions", "err", err)
		return nil
	}
	return data
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := s.Sessions()
	records := make([]session.Record, 0, len(sessions))
	for _, ss := range sessions {
		records = append(records, session.Record{
			ID:          ss.ID,
			SessionName: ss.Name,
			LastCapture: session.Timestamp{Time: ss.LastCapture},
			CreatedAt:   session.Timestamp{Time: ss.CreatedAt},
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"sessions": records})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("feed upgrade", "err", err)
		return
	}
	p := s.feed.add(conn, s.pushPayload())
	s.log.Debug("feed client connected", "remote", r.RemoteAddr)
	defer func() {
		s.feed.remove(p)
		s.log.Debug("feed client disconnected", "remote", r.RemoteAddr)
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleGotty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if !s.known(name) {
		http.Error(w, "unknown tmux session", http.StatusNotFound)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("gotty upgrade", "err", err)
		return
	}

	h := s.tty(name)
	p := h.add(conn, nil)
	s.log.Debug("terminal attached", "session", name)
	defer func() {
		h.remove(p)
		s.log.Debug("terminal detached", "session", name)
	}()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage || len(data) == 0 {
			continue
		}
		f, err := gotty.DecodeClient(data)
		if err != nil {
			s.log.Debug("bad client frame", "session", name, "err", err)
			continue
		}
		switch f.Kind {
		case gotty.KindInput:
			s.mu.Lock()
			s.inputs[name] = append(s.inputs[name], f.Data...)
			s.mu.Unlock()
			h.broadcast(gotty.Output(echo(f.Data)))
		case gotty.KindPing:
			h.sendTo(p, gotty.Pong())
		case gotty.KindResize:
			s.mu.Lock()
			s.resizes[name] = append(s.resizes[name], Geometry{Cols: f.Cols, Rows: f.Rows})
			s.mu.Unlock()
			s.log.Debug("resize", "session", name, "cols", f.Cols, "rows", f.Rows)
		}
	}
}

// echo renders typed bytes the way a line-mode tty would.
func echo(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		switch b {
		case '\r':
			out = append(out, '\r', '\n')
		case 0x7f:
			out = append(out, '\b', ' ', '\b')
		default:
			out = append(out, b)
		}
	}
	return out
}
