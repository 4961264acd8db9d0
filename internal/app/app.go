package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/remote-vibecode/muxterm/internal/client"
	"github.com/remote-vibecode/muxterm/internal/config"
	"github.com/remote-vibecode/muxterm/internal/mux"
	"github.com/remote-vibecode/muxterm/internal/session"
	"github.com/remote-vibecode/muxterm/internal/terminal"
	"github.com/remote-vibecode/muxterm/internal/theme"
	"github.com/remote-vibecode/muxterm/internal/views/debug"
	"github.com/remote-vibecode/muxterm/internal/views/detail"
	"github.com/remote-vibecode/muxterm/internal/views/help"
	"github.com/remote-vibecode/muxterm/internal/views/sidebar"
	"github.com/remote-vibecode/muxterm/internal/views/status"
)

const (
	blinkInterval   = 530 * time.Millisecond
	animateInterval = time.Second / 60
	statusHeight    = 3
	helpHeight      = 1
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayDebug
	OverlayHelp
)

type (
	blinkMsg   struct{}
	animateMsg struct{}
	pollMsg    struct{}
	reloadMsg  config.Reload
)

// inbox collects workspace callbacks between updates. The Workspace calls
// back synchronously from inside Update, so no locking is needed.
type inbox struct {
	snap   *mux.Snapshot
	events []mux.Event
}

// Options wires the model to its collaborators. Feed is only used in push
// mode; Reloads may be nil.
type Options struct {
	Config    *config.Config
	Workspace *mux.Workspace
	HTTP      *client.HTTPClient
	Feed      *client.DiscoveryClient
	Reloads   <-chan config.Reload
	Logger    *log.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	cfg     *config.Config
	ws      *mux.Workspace
	http    *client.HTTPClient
	feed    *client.DiscoveryClient
	reloads <-chan config.Reload
	log     *log.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	inbox   *inbox

	keys   KeyMap
	width  int
	height int

	overlay      Overlay
	autoSelected bool
	animating    bool

	sidebar   sidebar.Model
	statusBar status.Model
	debugLog  debug.Model
	help      *help.Model
}

// TerminalConfig maps the terminal section of the config onto widget
// settings.
func TerminalConfig(cfg *config.Config) terminal.Config {
	tc := terminal.DefaultConfig()
	tc.Scrollback = cfg.Terminal.Scrollback
	tc.CursorBlink = cfg.Terminal.CursorBlink
	return tc
}

// New creates the root model.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	keys := DefaultKeyMap()
	hm := help.New(
		help.Section{Title: "Sessions", Bindings: []key.Binding{
			keys.Up, keys.Down, keys.Enter, keys.Terminal, keys.Reconnect, keys.PageUp, keys.PageDown,
		}},
		help.Section{Title: "Terminal", Bindings: []key.Binding{keys.Release}},
		help.Section{Title: "Overlays", Bindings: []key.Binding{
			keys.Info, keys.Debug, keys.Help, keys.Escape, keys.Quit,
		}},
	)

	m := Model{
		cfg:       opts.Config,
		ws:        opts.Workspace,
		http:      opts.HTTP,
		feed:      opts.Feed,
		reloads:   opts.Reloads,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
		inbox:     &inbox{},
		keys:      keys,
		sidebar:   sidebar.New(),
		statusBar: status.New(opts.Config.Discovery.Mode),
		debugLog:  debug.New(),
		help:      &hm,
	}

	in := m.inbox
	m.ws.Subscribe(func(s mux.Snapshot) { in.snap = &s })
	m.ws.OnEvent(func(e mux.Event) { in.events = append(in.events, e) })
	m.sidebar.Sync(m.ws.Snapshot())
	return m
}

// Init starts discovery, the cursor blink and the config watcher.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.discoveryStart(), m.waitReload()}
	if m.cfg.Terminal.CursorBlink {
		cmds = append(cmds, blinkCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) discoveryStart() tea.Cmd {
	if m.cfg.Discovery.Mode == config.ModePull || m.feed == nil {
		return m.http.PollCmd(m.ctx)
	}
	// Load once over REST so the list is populated before the feed is up.
	return tea.Batch(m.http.PollCmd(m.ctx), m.feed.Listen(m.ctx))
}

func (m Model) pushMode() bool {
	return m.cfg.Discovery.Mode == config.ModePush && m.feed != nil
}

func blinkCmd() tea.Cmd {
	return tea.Tick(blinkInterval, func(time.Time) tea.Msg { return blinkMsg{} })
}

func animateCmd() tea.Cmd {
	return tea.Tick(animateInterval, func(time.Time) tea.Msg { return animateMsg{} })
}

func (m Model) pollAfter() tea.Cmd {
	return tea.Tick(m.cfg.Discovery.Interval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) waitReload() tea.Cmd {
	ch := m.reloads
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return reloadMsg(r)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m, cmd := m.update(msg)
	synced := m.drain()
	return m, tea.Batch(cmd, synced)
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case blinkMsg:
		m.ws.Blink()
		return m, blinkCmd()

	case animateMsg:
		m.sidebar.Animate()
		if m.sidebar.Animating() {
			return m, animateCmd()
		}
		m.animating = false
		return m, nil

	case pollMsg:
		return m, m.http.PollCmd(m.ctx)

	case client.SessionsMsg:
		return m.applySessions(msg)

	case client.DiscoveryErrorMsg:
		m.statusBar.FeedErr = "discovery error"
		m.debugLog.Add("err", fmt.Sprintf("%s discovery: %v", msg.Source, msg.Err))
		m.log.Warn("discovery failed", "source", msg.Source, "err", msg.Err)
		if msg.Source == client.SourcePull {
			m.statusBar.Connected = false
			if m.pushMode() {
				return m, nil
			}
			return m, m.pollAfter()
		}
		return m, m.feed.ReadLoop(m.ctx)

	case client.DiscoveryConnectedMsg:
		m.statusBar.Connected = true
		m.statusBar.FeedErr = ""
		m.debugLog.Add("feed", "push feed connected")
		return m, m.feed.ReadLoop(m.ctx)

	case client.DiscoveryDisconnectedMsg:
		m.statusBar.Connected = false
		m.statusBar.FeedErr = "feed disconnected"
		m.debugLog.Add("feed", fmt.Sprintf("push feed lost: %v", msg.Err))
		return m, m.feed.Reconnect(m.ctx)

	case reloadMsg:
		m.applyReload(config.Reload(msg))
		return m, m.waitReload()
	}

	cmd, _ := m.ws.Update(msg)
	return m, cmd
}

func (m Model) applySessions(msg client.SessionsMsg) (Model, tea.Cmd) {
	sessions := session.Normalize(msg.Records, msg.At)
	m.ws.ReplaceSessions(sessions)
	m.debugLog.Add("feed", fmt.Sprintf("%d sessions via %s", len(sessions), msg.Source))

	var cmds []tea.Cmd
	if msg.Source == client.SourcePush {
		cmds = append(cmds, m.feed.ReadLoop(m.ctx))
	} else if !m.pushMode() {
		m.statusBar.Connected = true
		m.statusBar.FeedErr = ""
		cmds = append(cmds, m.pollAfter())
	}

	if m.cfg.UI.AutoSelect && !m.autoSelected && m.ws.Active() == "" && len(sessions) > 0 {
		m.autoSelected = true
		first := m.ws.Sessions()[0]
		cmds = append(cmds, m.ws.Select(first.ID))
		m.sidebar.Sync(m.ws.Snapshot())
		m.sidebar.Point(first.ID)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) applyReload(r config.Reload) {
	if r.Err != nil {
		m.debugLog.Add("err", "config reload: "+r.Err.Error())
		m.log.Warn("config reload rejected", "err", r.Err)
		return
	}
	next := r.Config
	m.ws.Reconfigure(TerminalConfig(next), next.Terminal.KeepaliveInterval, next.Terminal.ResizeOnOpen)
	if next.Server != m.cfg.Server || next.Discovery.Mode != m.cfg.Discovery.Mode {
		m.log.Info("server and discovery changes apply after restart")
	}
	// Mode and endpoints keep their startup values.
	next.Server = m.cfg.Server
	next.Discovery.Mode = m.cfg.Discovery.Mode
	m.cfg = next
	m.layout()
	m.debugLog.Add("cfg", "configuration reloaded")
}

// drain applies workspace callbacks collected during the last update.
func (m *Model) drain() tea.Cmd {
	for _, e := range m.inbox.events {
		name := e.SessionID
		if s, ok := m.ws.Session(e.SessionID); ok {
			name = s.Name
		}
		m.debugLog.Add(string(e.Kind), name+": "+e.Message)
	}
	m.inbox.events = m.inbox.events[:0]

	if m.inbox.snap == nil {
		return nil
	}
	snap := *m.inbox.snap
	m.inbox.snap = nil
	m.sidebar.Sync(snap)
	m.syncStatus(snap)
	return m.startAnimation()
}

func (m *Model) syncStatus(snap mux.Snapshot) {
	open := 0
	for _, st := range snap.States {
		if st == mux.StateOpen {
			open++
		}
	}
	m.statusBar.SetCounts(len(snap.Sessions), open, len(snap.Unread))
	m.statusBar.Active = ""
	m.statusBar.ActiveState = ""
	if inst := m.ws.ActiveInstance(); inst != nil {
		m.statusBar.Active = inst.Name
		m.statusBar.ActiveState = inst.State().String()
	}
	m.statusBar.Focused = m.terminalFocused()
}

func (m *Model) startAnimation() tea.Cmd {
	if m.animating || !m.sidebar.Animating() {
		return nil
	}
	m.animating = true
	return animateCmd()
}

func (m Model) terminalFocused() bool {
	inst := m.ws.ActiveInstance()
	return inst != nil && inst.Widget.Focused()
}

// paneSize returns the outer size of the terminal pane.
func (m Model) paneSize() (width, height int) {
	return m.width - m.sidebarWidth(), m.height - statusHeight - helpHeight
}

func (m Model) sidebarWidth() int {
	w := m.cfg.UI.SidebarWidth
	if half := m.width / 2; w > half {
		w = half
	}
	return w
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	paneW, paneH := m.paneSize()
	m.sidebar.Resize(m.sidebarWidth(), paneH)
	m.statusBar.Width = m.width - 2
	m.ws.ObserveGeometry(mux.ContentSize(paneW, paneH))
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case m.overlay == OverlayDetail && key.Matches(msg, m.keys.Reconnect):
			return m, m.ws.Reconnect()
		}
		return m, nil
	}

	if m.terminalFocused() {
		if key.Matches(msg, m.keys.Release) {
			m.ws.BlurActive()
			m.statusBar.Focused = false
			return m, nil
		}
		if data := terminal.KeyBytes(msg); len(data) > 0 {
			m.ws.Input(data)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		m.sidebar.MoveDown()
		return m, m.startAnimation()

	case key.Matches(msg, m.keys.Up):
		m.sidebar.MoveUp()
		return m, m.startAnimation()

	case key.Matches(msg, m.keys.Enter):
		s, ok := m.sidebar.Selected()
		if !ok {
			return m, nil
		}
		if s.ID == m.ws.Active() {
			m.ws.FocusActive()
			m.statusBar.Focused = m.terminalFocused()
			return m, nil
		}
		return m, m.ws.Select(s.ID)

	case key.Matches(msg, m.keys.Terminal):
		m.ws.FocusActive()
		m.statusBar.Focused = m.terminalFocused()
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		return m, m.ws.Reconnect()

	case key.Matches(msg, m.keys.PageUp):
		if inst := m.ws.ActiveInstance(); inst != nil {
			_, rows := inst.Widget.Size()
			inst.Widget.ScrollUp(rows / 2)
		}
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		if inst := m.ws.ActiveInstance(); inst != nil {
			_, rows := inst.Widget.Size()
			inst.Widget.ScrollDown(rows / 2)
		}
		return m, nil

	case key.Matches(msg, m.keys.Info):
		if _, ok := m.sidebar.Selected(); ok {
			m.overlay = OverlayDetail
		}
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	return m, nil
}

func (m Model) shutdown() {
	m.cancel()
	m.ws.Close()
	if m.feed != nil {
		m.feed.Close()
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	m.sidebar.Focused = !m.terminalFocused() && m.overlay == OverlayNone
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), m.renderPane())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		body,
		m.renderHelpLine(),
	)
}

func (m Model) renderPane() string {
	paneW, paneH := m.paneSize()
	innerW, innerH := max(paneW-2, 1), max(paneH-2, 1)

	if m.overlay != OverlayNone {
		return lipgloss.Place(paneW, paneH, lipgloss.Center, lipgloss.Center, m.renderOverlay(paneW, paneH))
	}

	style := theme.StyleBorder
	if m.terminalFocused() {
		style = theme.StyleFocusedBorder
	}
	inst := m.ws.ActiveInstance()
	if inst == nil {
		placeholder := lipgloss.Place(innerW, innerH, lipgloss.Center, lipgloss.Center,
			theme.StyleDimmed.Render("Select a session and press enter"))
		return style.Render(placeholder)
	}
	return style.Width(innerW).Height(innerH).MaxHeight(paneH).Render(inst.Widget.View())
}

func (m Model) renderOverlay(width, height int) string {
	switch m.overlay {
	case OverlayDebug:
		return m.debugLog.View(width, height)
	case OverlayHelp:
		return m.help.View(width)
	case OverlayDetail:
		s, _ := m.sidebar.Selected()
		_, known := m.ws.Session(s.ID)
		return detail.Model{
			Session:  s,
			Instance: m.ws.Instance(s.ID),
			Unread:   m.ws.Unread(s.ID),
			Known:    known,
		}.View()
	}
	return ""
}

func (m Model) renderHelpLine() string {
	if m.terminalFocused() {
		return theme.StyleDimmed.Render("  ctrl+]:back to list  (all other keys go to the session)")
	}
	return theme.StyleDimmed.Render("  j/k:move  enter:open  tab:terminal  r:reconnect  pgup/pgdn:scroll  i:info  d:log  ?:help  q:quit")
}
