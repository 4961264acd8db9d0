package detail

import (
	"strings"
	"testing"
	"time"

	"github.com/remote-vibecode/muxterm/internal/mux"
	"github.com/remote-vibecode/muxterm/internal/session"
	"github.com/remote-vibecode/muxterm/internal/terminal"
)

func TestViewEmpty(t *testing.T) {
	if v := (Model{}).View(); v != "" {
		t.Errorf("View() with no session = %q, want empty", v)
	}
}

func TestViewNotOpened(t *testing.T) {
	m := Model{
		Session: session.Session{ID: "abc123", Name: "build", LastActivity: time.Now().Add(-90 * time.Second)},
		Known:   true,
		Unread:  true,
	}
	v := m.View()
	for _, want := range []string{"Session: build", "abc123", "1m 30s ago", "not opened", "Unread"} {
		if !strings.Contains(v, want) {
			t.Errorf("View() missing %q:\n%s", want, v)
		}
	}
	if strings.Contains(v, "no longer listed") {
		t.Error("known session should not be flagged as unlisted")
	}
}

func TestViewWithInstance(t *testing.T) {
	w := terminal.New(terminal.DefaultConfig())
	w.Fit(100, 30)
	m := Model{
		Session:  session.Session{ID: "abc123", Name: "build"},
		Instance: &mux.Instance{SessionID: "abc123", Name: "build", Widget: w},
	}
	v := m.View()
	for _, want := range []string{"State:", "none", "100x30", "no longer listed"} {
		if !strings.Contains(v, want) {
			t.Errorf("View() missing %q:\n%s", want, v)
		}
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{5 * time.Second, "5s ago"},
		{3*time.Minute + 2*time.Second, "3m 2s ago"},
		{2*time.Hour + 5*time.Minute, "2h 5m ago"},
	}
	for _, tt := range tests {
		if got := formatAge(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("formatAge(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
