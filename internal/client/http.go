package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/remote-vibecode/muxterm/internal/session"
)

const maxBodyBytes = 4 << 20

// HTTPClient makes REST calls to the session server.
type HTTPClient struct {
	baseURL string
	path    string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL
// (e.g. "http://127.0.0.1:8080") and the sessions list path.
func NewHTTPClient(baseURL, sessionsPath string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    sessionsPath,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ListSessions fetches the current session snapshot.
func (c *HTTPClient) ListSessions(ctx context.Context) ([]session.Record, error) {
	body, err := c.get(ctx, c.path)
	if err != nil {
		return nil, err
	}
	return session.DecodeRecords(body)
}

// PollCmd returns a command performing one ListSessions call.
func (c *HTTPClient) PollCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		records, err := c.ListSessions(ctx)
		if err != nil {
			return DiscoveryErrorMsg{Source: SourcePull, Err: err}
		}
		return SessionsMsg{Records: records, Source: SourcePull, At: time.Now()}
	}
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
