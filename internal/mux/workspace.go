// Package mux multiplexes terminal sessions. A Workspace owns the session
// registry, one terminal instance per selected session, the active-session
// pointer and the unread set, and drives each instance's connection through
// Connecting, Open and Closed.
//
// All Workspace methods run on the Bubble Tea update loop. Network work is
// returned as tea.Cmds and comes back through Update as messages, so no
// method blocks and none needs a lock.
package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/remote-vibecode/muxterm/internal/gotty"
	"github.com/remote-vibecode/muxterm/internal/session"
	"github.com/remote-vibecode/muxterm/internal/terminal"
)

// Options configures a Workspace.
type Options struct {
	Transport         Transport
	Terminal          terminal.Config
	KeepaliveInterval time.Duration
	// ResizeOnOpen sends the visible widget's geometry as soon as a
	// connection opens.
	ResizeOnOpen bool
	QueueSize    int
	Logger       *log.Logger
	Now          func() time.Time
}

// Snapshot is the state UI Sync renders from.
type Snapshot struct {
	Sessions []session.Session
	Active   string
	Unread   map[string]bool
	States   map[string]State
}

// Workspace is the process-wide multiplexer state.
type Workspace struct {
	opts   Options
	log    *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	registry  *session.Registry
	instances map[string]*Instance
	active    string
	unread    map[string]struct{}

	observers []func(Snapshot)
	listeners []func(Event)

	cols, rows int
	closed     bool
}

// New creates a Workspace. Close releases it.
func New(opts Options) *Workspace {
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = DefaultKeepalive
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Terminal == (terminal.Config{}) {
		opts.Terminal = terminal.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Workspace{
		opts:      opts,
		log:       opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		now:       opts.Now,
		registry:  session.NewRegistry(),
		instances: make(map[string]*Instance),
		unread:    make(map[string]struct{}),
	}
}

// Close tears down every connection. Messages arriving afterwards are
// ignored.
func (w *Workspace) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.cancel()
	for _, inst := range w.instances {
		if inst.conn != nil {
			inst.conn.markClosed(nil)
		}
	}
}

// Reconfigure applies settings that take effect for instances and
// connections created from now on.
func (w *Workspace) Reconfigure(term terminal.Config, keepalive time.Duration, resizeOnOpen bool) {
	if term != (terminal.Config{}) {
		w.opts.Terminal = term
	}
	if keepalive > 0 {
		w.opts.KeepaliveInterval = keepalive
	}
	w.opts.ResizeOnOpen = resizeOnOpen
}

// Subscribe registers a UI Sync observer. It is called after every change to
// the registry, the active session, the unread set or a connection state.
func (w *Workspace) Subscribe(fn func(Snapshot)) {
	w.observers = append(w.observers, fn)
}

// OnEvent registers a listener for lifecycle events.
func (w *Workspace) OnEvent(fn func(Event)) {
	w.listeners = append(w.listeners, fn)
}

// Snapshot returns the current UI Sync state.
func (w *Workspace) Snapshot() Snapshot {
	snap := Snapshot{
		Sessions: w.registry.List(),
		Active:   w.active,
		Unread:   make(map[string]bool, len(w.unread)),
		States:   make(map[string]State, len(w.instances)),
	}
	for id := range w.unread {
		snap.Unread[id] = true
	}
	for id, inst := range w.instances {
		snap.States[id] = inst.State()
	}
	return snap
}

func (w *Workspace) notify() {
	if len(w.observers) == 0 {
		return
	}
	snap := w.Snapshot()
	for _, fn := range w.observers {
		fn(snap)
	}
}

func (w *Workspace) emit(kind EventKind, sessionID, msg string) {
	for _, fn := range w.listeners {
		fn(Event{Kind: kind, SessionID: sessionID, Message: msg})
	}
}

// ReplaceSessions installs a new discovery snapshot. Instances of sessions
// that left the snapshot are kept; their widget and scrollback survive if
// the session comes back.
func (w *Workspace) ReplaceSessions(sessions []session.Session) {
	added, removed := w.registry.Replace(sessions)
	if len(added) > 0 || len(removed) > 0 {
		w.log.Debug("sessions changed", "added", added, "removed", removed)
		w.emit(EventNav, "", fmt.Sprintf("sessions: +%d -%d", len(added), len(removed)))
	}
	w.notify()
}

// Sessions returns the registry in display order.
func (w *Workspace) Sessions() []session.Session { return w.registry.List() }

// Session looks up a registry entry.
func (w *Workspace) Session(id string) (session.Session, bool) { return w.registry.Get(id) }

// Active returns the active session id, "" if none.
func (w *Workspace) Active() string { return w.active }

// ActiveInstance returns the instance of the active session, or nil.
func (w *Workspace) ActiveInstance() *Instance { return w.instances[w.active] }

// Instance returns the instance for a session id, or nil.
func (w *Workspace) Instance(id string) *Instance { return w.instances[id] }

// InstanceIDs returns the ids of every created instance, sorted.
func (w *Workspace) InstanceIDs() []string {
	ids := make([]string, 0, len(w.instances))
	for id := range w.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Unread reports whether a session has unseen output.
func (w *Workspace) Unread(id string) bool {
	_, ok := w.unread[id]
	return ok
}

// UnreadCount returns the size of the unread set.
func (w *Workspace) UnreadCount() int { return len(w.unread) }

// Select makes a session the visible, focused one, creating its instance and
// connection on first use. Selecting the active session does nothing.
// Selecting an inactive session whose connection is closed starts a new one.
func (w *Workspace) Select(id string) tea.Cmd {
	if w.closed || id == w.active {
		return nil
	}
	s, ok := w.registry.Get(id)
	if !ok {
		w.log.Warn("select of unknown session", "session", id)
		return nil
	}

	var cmd tea.Cmd
	inst, ok := w.instances[id]
	switch {
	case !ok:
		inst = w.newInstance(s)
		cmd = w.connect(inst)
	case inst.State() == StateClosed:
		cmd = w.connect(inst)
	}

	for other, oi := range w.instances {
		if other != id {
			oi.Widget.Hide()
		}
	}
	inst.Widget.Show()
	inst.Widget.Focus()

	delete(w.unread, id)
	w.active = id
	w.emit(EventNav, id, "selected "+s.Name)
	w.notify()

	w.fit(inst)
	return cmd
}

// Reconnect starts a new connection for the active session if its current
// one is closed.
func (w *Workspace) Reconnect() tea.Cmd {
	inst := w.ActiveInstance()
	if w.closed || inst == nil || inst.State() != StateClosed {
		return nil
	}
	cmd := w.connect(inst)
	w.notify()
	return cmd
}

// Input feeds user input to the active widget. It reports false when no
// widget has focus.
func (w *Workspace) Input(data []byte) bool {
	inst := w.ActiveInstance()
	if inst == nil || !inst.Widget.Focused() {
		return false
	}
	inst.Widget.Input(data)
	return true
}

// FocusActive gives keyboard focus to the active widget.
func (w *Workspace) FocusActive() bool {
	inst := w.ActiveInstance()
	if inst == nil {
		return false
	}
	inst.Widget.Focus()
	return inst.Widget.Focused()
}

// BlurActive takes keyboard focus away from the active widget.
func (w *Workspace) BlurActive() {
	if inst := w.ActiveInstance(); inst != nil {
		inst.Widget.Blur()
	}
}

// Blink advances the cursor blink of the active widget.
func (w *Workspace) Blink() {
	if inst := w.ActiveInstance(); inst != nil {
		inst.Widget.Blink()
	}
}

func (w *Workspace) newInstance(s session.Session) *Instance {
	inst := &Instance{
		SessionID: s.ID,
		Name:      s.Name,
		Widget:    terminal.New(w.opts.Terminal),
	}
	inst.Widget.OnData(func(data []byte) {
		inst.send(gotty.InputBytes(data))
	})
	inst.Widget.OnResize(func(cols, rows int) {
		inst.send(gotty.Resize(cols, rows))
	})
	w.instances[s.ID] = inst
	w.log.Debug("created instance", "session", s.ID)
	return inst
}

func (w *Workspace) connect(inst *Instance) tea.Cmd {
	if s, ok := w.registry.Get(inst.SessionID); ok {
		inst.Name = s.Name
	}
	c := newConnection()
	inst.conn = c
	inst.attempts++
	w.log.Info("connecting", "session", inst.SessionID, "name", inst.Name, "conn", c.ID)
	w.emit(EventConn, inst.SessionID, "connecting to "+inst.Name)
	return dialCmd(w.ctx, w.opts.Transport, inst.SessionID, c.ID, inst.Name)
}

// Update applies a connection message. The bool reports whether msg was one
// of the Workspace's own messages.
func (w *Workspace) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case ConnOpenedMsg:
		return w.opened(msg), true
	case ConnFailedMsg:
		w.finish(msg.SessionID, msg.ConnID, fallbackErr(msg.Err))
		return nil, true
	case FrameMsg:
		return w.frame(msg), true
	case ConnClosedMsg:
		w.finish(msg.SessionID, msg.ConnID, msg.Err)
		return nil, true
	case KeepaliveMsg:
		return w.keepalive(msg), true
	}
	return nil, false
}

func (w *Workspace) lookup(sessionID, connID string) (*Instance, *Connection, bool) {
	inst, ok := w.instances[sessionID]
	if !ok {
		return nil, nil, false
	}
	c, ok := inst.current(connID)
	return inst, c, ok
}

func (w *Workspace) opened(msg ConnOpenedMsg) tea.Cmd {
	inst, c, ok := w.lookup(msg.SessionID, msg.ConnID)
	if !ok || w.closed || c.state != StateConnecting {
		if msg.Conn != nil {
			_ = msg.Conn.Close()
		}
		return nil
	}
	c.open(msg.Conn, w.opts.QueueSize, w.now())
	inst.Widget.WriteString(fmt.Sprintf(lineConnected, inst.Name))
	if inst.SessionID == w.active {
		inst.Widget.Focus()
	}
	w.log.Info("connected", "session", inst.SessionID, "conn", c.ID)
	w.emit(EventConn, inst.SessionID, "connected to "+inst.Name)

	if w.opts.ResizeOnOpen && inst.Widget.Visible() {
		cols, rows := inst.Widget.Size()
		c.send(gotty.Resize(cols, rows))
	}
	w.notify()
	return tea.Batch(
		readCmd(inst.SessionID, c.ID, c.conn),
		keepaliveCmd(inst.SessionID, c.ID, c.gen, w.opts.KeepaliveInterval),
	)
}

func (w *Workspace) frame(msg FrameMsg) tea.Cmd {
	inst, c, ok := w.lookup(msg.SessionID, msg.ConnID)
	if !ok || c.state != StateOpen {
		return nil
	}
	w.handleFrame(inst, c, msg.Data)
	return readCmd(inst.SessionID, c.ID, c.conn)
}

// finish closes a connection and writes exactly one system line for it.
func (w *Workspace) finish(sessionID, connID string, err error) {
	inst, c, ok := w.lookup(sessionID, connID)
	if !ok || !c.markClosed(err) {
		return
	}
	if c.err != nil {
		inst.Widget.WriteString(lineError)
		w.log.Warn("connection error", "session", sessionID, "conn", connID, "err", c.err)
		w.emit(EventError, sessionID, "connection error: "+c.err.Error())
	} else {
		inst.Widget.WriteString(lineClosed)
		w.log.Info("connection closed", "session", sessionID, "conn", connID)
		w.emit(EventConn, sessionID, "connection closed")
	}
	w.notify()
}

func (w *Workspace) keepalive(msg KeepaliveMsg) tea.Cmd {
	_, c, ok := w.lookup(msg.SessionID, msg.ConnID)
	if !ok || c.state != StateOpen || msg.Gen != c.gen {
		return nil
	}
	c.send(gotty.Ping())
	return keepaliveCmd(msg.SessionID, msg.ConnID, c.gen, w.opts.KeepaliveInterval)
}

func fallbackErr(err error) error {
	if err == nil {
		return errors.New("dial failed")
	}
	return err
}
