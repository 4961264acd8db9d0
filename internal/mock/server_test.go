package mock

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/remote-vibecode/muxterm/internal/gotty"
	"github.com/remote-vibecode/muxterm/internal/session"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	s := NewServer(log.New(io.Discard), DefaultSessions(now))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, path), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) gotty.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	f, err := gotty.Decode(data)
	if err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return f
}

func TestListSessions(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/tmux/sessions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	records, err := session.DecodeRecords(body)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	if records[0].SessionName != "claude-refactor" || records[0].ID != SessionID("claude-refactor") {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[0].LastCapture.Unix() != 1_700_000_000 {
		t.Errorf("LastCapture = %v", records[0].LastCapture.Time)
	}
}

func TestFeedSnapshotAndBroadcast(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, "/api/v1/sessions/ws")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	records, err := session.DecodeRecords(data)
	if err != nil || len(records) != 4 {
		t.Fatalf("snapshot = %d records, err %v", len(records), err)
	}

	waitFor(t, "feed subscriber", func() bool { return s.Subscribers() == 1 })
	s.SetSessions([]Session{{ID: "x", Name: "solo"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	records, _ = session.DecodeRecords(data)
	if len(records) != 1 || records[0].SessionName != "solo" {
		t.Errorf("broadcast = %+v", records)
	}
}

func TestGottyEchoPingResize(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, "/gotty/build")
	waitFor(t, "terminal attach", func() bool { return s.Attached("build") == 1 })

	if err := conn.WriteMessage(websocket.TextMessage, gotty.Input("ls\r")); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, conn)
	if f.Kind != gotty.KindOutput || f.Text != "ls\r\n" {
		t.Errorf("echo = %v %q", f.Kind, f.Text)
	}
	if got := s.Input("build"); got != "ls\r" {
		t.Errorf("Input = %q", got)
	}

	conn.WriteMessage(websocket.TextMessage, gotty.Ping())
	if f := readFrame(t, conn); f.Kind != gotty.KindPong {
		t.Errorf("ping reply = %v, want pong", f.Kind)
	}

	conn.WriteMessage(websocket.TextMessage, gotty.Resize(120, 40))
	waitFor(t, "resize", func() bool { return len(s.Resizes("build")) == 1 })
	if got := s.Resizes("build")[0]; got != (Geometry{Cols: 120, Rows: 40}) {
		t.Errorf("resize = %+v", got)
	}
}

func TestGottyEscapedName(t *testing.T) {
	s, ts := newTestServer(t)
	dial(t, ts, "/gotty/"+url.PathEscape("café ☕"))
	waitFor(t, "terminal attach", func() bool { return s.Attached("café ☕") == 1 })

	if n := s.Write("café ☕", []byte("☕")); n != 1 {
		t.Errorf("Write reached %d terminals, want 1", n)
	}
}

func TestGottyUnknownSession(t *testing.T) {
	_, ts := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/gotty/nope"), nil)
	if err == nil {
		t.Fatal("dial of unknown session should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("resp = %v, want 404", resp)
	}
}

func TestHangupClosesNormally(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts, "/gotty/build")
	waitFor(t, "terminal attach", func() bool { return s.Attached("build") == 1 })

	s.Hangup("build")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after hangup = %v, want normal close", err)
	}
}

func TestGeneratorTick(t *testing.T) {
	s, ts := newTestServer(t)
	g := NewGenerator(s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.Start(ctx)

	conn := dial(t, ts, "/gotty/claude-refactor")
	waitFor(t, "terminal attach", func() bool { return s.Attached("claude-refactor") == 1 })

	g.Tick()
	f := readFrame(t, conn)
	if !strings.Contains(f.Text, "workspace.go") {
		t.Errorf("first line = %q", f.Text)
	}

	for i := 0; i < 19; i++ {
		g.Tick()
	}
	found := false
	for _, ss := range s.Sessions() {
		if ss.Name == scratchSession {
			found = true
		}
	}
	if !found {
		t.Error("scratch session should appear at tick 20")
	}

	for i := 0; i < 20; i++ {
		g.Tick()
	}
	for _, ss := range s.Sessions() {
		if ss.Name == scratchSession {
			t.Error("scratch session should be gone at tick 40")
		}
	}
}
