package mux

import (
	"github.com/remote-vibecode/muxterm/internal/terminal"
)

// Instance pairs one session's terminal widget with its current Connection.
// An instance is created on first selection and lives as long as the
// Workspace; only its Connection is ever replaced.
type Instance struct {
	SessionID string
	Name      string
	Widget    *terminal.Widget

	conn     *Connection
	attempts int
}

// State returns the state of the current connection, StateNone if there has
// never been one.
func (i *Instance) State() State {
	if i.conn == nil {
		return StateNone
	}
	return i.conn.state
}

// Connection returns the current connection, or nil.
func (i *Instance) Connection() *Connection { return i.conn }

// Attempts returns how many connections have been started for the instance.
func (i *Instance) Attempts() int { return i.attempts }

// send queues a frame on the current connection if it is open.
func (i *Instance) send(msg []byte) bool {
	if i.conn == nil {
		return false
	}
	return i.conn.send(msg)
}

// current reports whether connID names the instance's live connection.
func (i *Instance) current(connID string) (*Connection, bool) {
	if i.conn == nil || i.conn.ID != connID {
		return nil, false
	}
	return i.conn, true
}
