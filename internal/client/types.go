// Package client provides the network clients muxterm uses: the gotty
// websocket transport for terminal sessions, and the HTTP and WebSocket
// clients for the session discovery feed.
package client

import (
	"time"

	"github.com/remote-vibecode/muxterm/internal/session"
)

// Source identifies which discovery feed produced a snapshot.
type Source string

const (
	SourcePull Source = "pull"
	SourcePush Source = "push"
)

// --- Bubble Tea messages ---

// SessionsMsg delivers one full discovery snapshot.
type SessionsMsg struct {
	Records []session.Record
	Source  Source
	At      time.Time
}

// DiscoveryErrorMsg reports a failed poll or an undecodable push message.
// The previous snapshot stays in place.
type DiscoveryErrorMsg struct {
	Source Source
	Err    error
}

// DiscoveryConnectedMsg is sent when the push feed connects.
type DiscoveryConnectedMsg struct{}

// DiscoveryDisconnectedMsg is sent when the push feed drops.
type DiscoveryDisconnectedMsg struct{ Err error }
