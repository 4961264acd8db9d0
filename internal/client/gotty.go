package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	closeGrace       = time.Second
)

// Conn is one open terminal connection carrying whole gotty frames.
// ReadMessage returns io.EOF when the peer closed the connection cleanly.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
}

// WebsocketURL joins a server base URL and a path, switching http(s) to
// ws(s). A ws(s) base is kept as is.
func WebsocketURL(server, path string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url %q: unsupported scheme %q", server, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url %q: missing host", server)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/") + path, nil
}

// GottyDialer opens terminal connections at {ws base}{path}{escaped name}.
type GottyDialer struct {
	base   string
	path   string
	dialer *websocket.Dialer
}

// NewGottyDialer creates a dialer for the gotty endpoint of server.
func NewGottyDialer(server, gottyPath string) (*GottyDialer, error) {
	base, err := WebsocketURL(server, "")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(gottyPath, "/") {
		gottyPath = "/" + gottyPath
	}
	if !strings.HasSuffix(gottyPath, "/") {
		gottyPath += "/"
	}
	return &GottyDialer{
		base: base,
		path: gottyPath,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
	}, nil
}

// URL returns the endpoint for a session display name.
func (d *GottyDialer) URL(name string) string {
	return d.base + d.path + url.PathEscape(name)
}

// Dial connects to the named session.
func (d *GottyDialer) Dial(ctx context.Context, name string) (Conn, error) {
	target := d.URL(name)
	ws, resp, err := d.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return NewGottyConn(ws), nil
}

// GottyConn adapts a websocket connection to Conn.
type GottyConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex // serialises writes, including the close frame
}

func NewGottyConn(ws *websocket.Conn) *GottyConn {
	return &GottyConn{ws: ws}
}

func (c *GottyConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *GottyConn) WriteMessage(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Close sends a best-effort close frame and tears the socket down. It never
// waits on a write in flight: if one holds the connection, the frame is
// skipped and closing the socket fails that write.
func (c *GottyConn) Close() error {
	if c.writeMu.TryLock() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		c.writeMu.Unlock()
	}
	return c.ws.Close()
}
