package mux

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/remote-vibecode/muxterm/internal/client"
	"github.com/remote-vibecode/muxterm/internal/gotty"
)

const (
	DefaultKeepalive = 30 * time.Second
	DefaultQueueSize = 256
)

var errTooSlow = errors.New("write queue full")

// System lines written into a session's terminal stream.
const (
	lineConnected = "\x1b[38;5;215m*** Connected to %s ***\x1b[0m\r\n"
	lineClosed    = "\r\n\x1b[38;5;215m*** Connection closed ***\x1b[0m\r\n"
	lineError     = "\r\n\x1b[38;5;203m*** Connection error ***\x1b[0m\r\n"
)

// State is a connection state. Closed is terminal: a closed Connection is
// never reopened, a new one replaces it.
type State int

const (
	StateNone State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return ""
	}
}

// Transport opens terminal connections by session display name.
type Transport interface {
	Dial(ctx context.Context, name string) (client.Conn, error)
}

// Connection is one attempt to reach a session. Its fields are touched only
// from the UI loop, except conn and the channels used by the write pump.
type Connection struct {
	ID    string
	state State
	err   error

	conn     client.Conn
	queue    chan []byte
	done     chan struct{}
	stopOnce sync.Once
	stopping bool

	gen      int
	sent     int
	openedAt time.Time
	lastPong time.Time
}

func newConnection() *Connection {
	return &Connection{ID: uuid.NewString(), state: StateConnecting}
}

func (c *Connection) State() State { return c.state }

// Err returns the error that closed the connection, nil after a clean close.
func (c *Connection) Err() error { return c.err }

// Sent returns the number of frames queued for sending.
func (c *Connection) Sent() int { return c.sent }

func (c *Connection) OpenedAt() time.Time { return c.openedAt }
func (c *Connection) LastPong() time.Time { return c.lastPong }

func (c *Connection) open(conn client.Conn, queueSize int, now time.Time) {
	c.conn = conn
	c.queue = make(chan []byte, queueSize)
	c.done = make(chan struct{})
	c.state = StateOpen
	c.openedAt = now
	go c.writePump()
}

func (c *Connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.queue:
			if err := c.conn.WriteMessage(msg); err != nil {
				// The read side sees the closed socket and reports it.
				_ = c.conn.Close()
				return
			}
		}
	}
}

// send queues a frame. It never blocks; a full queue shuts the connection.
func (c *Connection) send(msg []byte) bool {
	if c.state != StateOpen || c.stopping {
		return false
	}
	select {
	case c.queue <- msg:
		c.sent++
		return true
	default:
		c.err = errTooSlow
		c.stop()
		return false
	}
}

// stop releases the socket and the write pump. Safe to call more than once.
func (c *Connection) stop() {
	c.stopping = true
	c.stopOnce.Do(func() {
		if c.done != nil {
			close(c.done)
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// markClosed moves the connection to Closed and invalidates its keepalive.
// It reports false if the connection was already closed.
func (c *Connection) markClosed(err error) bool {
	if c.state == StateClosed {
		return false
	}
	if c.err == nil {
		c.err = err
	}
	c.state = StateClosed
	c.gen++
	c.stop()
	return true
}

func dialCmd(ctx context.Context, t Transport, sessionID, connID, name string) tea.Cmd {
	return func() tea.Msg {
		conn, err := t.Dial(ctx, name)
		if err != nil {
			return ConnFailedMsg{SessionID: sessionID, ConnID: connID, Err: err}
		}
		return ConnOpenedMsg{SessionID: sessionID, ConnID: connID, Conn: conn}
	}
}

// readCmd reads one frame. It is re-issued after every FrameMsg, the same
// way a feed read loop is.
func readCmd(sessionID, connID string, conn client.Conn) tea.Cmd {
	return func() tea.Msg {
		data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return ConnClosedMsg{SessionID: sessionID, ConnID: connID, Err: err}
		}
		return FrameMsg{SessionID: sessionID, ConnID: connID, Data: data}
	}
}

func keepaliveCmd(sessionID, connID string, gen int, every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg {
		return KeepaliveMsg{SessionID: sessionID, ConnID: connID, Gen: gen}
	})
}

// handleFrame applies one decoded inbound frame to its instance.
func (w *Workspace) handleFrame(inst *Instance, c *Connection, data []byte) {
	f, err := gotty.Decode(data)
	switch {
	case errors.Is(err, gotty.ErrEmpty):
		return
	case err != nil:
		w.log.Warn("dropped frame", "session", inst.SessionID, "err", err)
		w.emit(EventError, inst.SessionID, err.Error())
		return
	}

	switch f.Kind {
	case gotty.KindOutput:
		if f.Text == "" {
			return
		}
		inst.Widget.WriteString(f.Text)
		if inst.SessionID != w.active {
			if _, ok := w.unread[inst.SessionID]; !ok {
				w.unread[inst.SessionID] = struct{}{}
				w.notify()
			}
		}
	case gotty.KindPing:
		c.send(gotty.Pong())
	case gotty.KindPong:
		c.lastPong = w.now()
	case gotty.KindResize:
		w.log.Debug("ignored server resize", "session", inst.SessionID, "cols", f.Cols, "rows", f.Rows)
	}
}
