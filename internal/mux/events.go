package mux

import (
	"github.com/remote-vibecode/muxterm/internal/client"
)

// Messages produced by connection commands and consumed by Workspace.Update.
// Every message carries the ConnID it belongs to; messages for a Connection
// that has since been replaced are discarded.

// ConnOpenedMsg reports a successful dial.
type ConnOpenedMsg struct {
	SessionID string
	ConnID    string
	Conn      client.Conn
}

// ConnFailedMsg reports a dial that never opened.
type ConnFailedMsg struct {
	SessionID string
	ConnID    string
	Err       error
}

// FrameMsg carries one inbound websocket message.
type FrameMsg struct {
	SessionID string
	ConnID    string
	Data      []byte
}

// ConnClosedMsg reports the end of an open connection. Err is nil when the
// peer closed cleanly.
type ConnClosedMsg struct {
	SessionID string
	ConnID    string
	Err       error
}

// KeepaliveMsg is the keepalive tick for one generation of a connection.
type KeepaliveMsg struct {
	SessionID string
	ConnID    string
	Gen       int
}

// EventKind classifies workspace events for the debug log.
type EventKind string

const (
	EventConn  EventKind = "conn"
	EventFrame EventKind = "frm"
	EventNav   EventKind = "nav"
	EventError EventKind = "err"
)

// Event is a human-readable lifecycle event.
type Event struct {
	Kind      EventKind
	SessionID string
	Message   string
}
