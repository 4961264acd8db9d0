package client

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/remote-vibecode/muxterm/internal/session"
)

const DefaultRetryDelay = 2 * time.Second

// DiscoveryClient subscribes to the push discovery feed. It redials on a
// fixed delay for as long as its context lives.
type DiscoveryClient struct {
	url   string
	retry time.Duration
	log   *log.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewDiscoveryClient creates a push feed client for the given websocket URL.
func NewDiscoveryClient(url string, retry time.Duration, logger *log.Logger) *DiscoveryClient {
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	return &DiscoveryClient{url: url, retry: retry, log: logger}
}

// Listen returns a command that dials immediately and keeps retrying until
// connected or cancelled.
func (c *DiscoveryClient) Listen(ctx context.Context) tea.Cmd {
	return c.listen(ctx, 0)
}

// Reconnect is Listen after one retry delay, for use after a disconnect.
func (c *DiscoveryClient) Reconnect(ctx context.Context) tea.Cmd {
	return c.listen(ctx, c.retry)
}

func (c *DiscoveryClient) listen(ctx context.Context, wait time.Duration) tea.Cmd {
	return func() tea.Msg {
		for {
			if wait > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(wait):
				}
			}
			wait = c.retry

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Warn("discovery dial failed", "url", c.url, "err", err, "retry", c.retry)
				continue
			}

			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			c.log.Info("discovery feed connected", "url", c.url)
			return DiscoveryConnectedMsg{}
		}
	}
}

// ReadLoop returns a command that reads the next snapshot from the feed.
// It should be re-issued after every message it produces, except
// DiscoveryDisconnectedMsg.
func (c *DiscoveryClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return DiscoveryDisconnectedMsg{Err: errors.New("no connection")}
		}

		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn)
			if ctx.Err() != nil {
				return nil
			}
			return DiscoveryDisconnectedMsg{Err: err}
		}
		records, err := session.DecodeRecords(data)
		if err != nil {
			return DiscoveryErrorMsg{Source: SourcePush, Err: err}
		}
		return SessionsMsg{Records: records, Source: SourcePush, At: time.Now()}
	}
}

// Close drops the current feed connection, if any.
func (c *DiscoveryClient) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		c.drop(conn)
	}
}

func (c *DiscoveryClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}
