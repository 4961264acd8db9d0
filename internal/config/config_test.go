package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Terminal.KeepaliveInterval != 30*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 30s", cfg.Terminal.KeepaliveInterval)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  url: "https://tmux.example.com"
discovery:
  mode: pull
  interval: 5s
terminal:
  scrollback: 5000
  resize_on_open: false
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.URL != "https://tmux.example.com" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Discovery.Mode != ModePull {
		t.Errorf("Discovery.Mode = %q, want pull", cfg.Discovery.Mode)
	}
	if cfg.Discovery.Interval != 5*time.Second {
		t.Errorf("Discovery.Interval = %v, want 5s", cfg.Discovery.Interval)
	}
	if cfg.Terminal.Scrollback != 5000 {
		t.Errorf("Terminal.Scrollback = %d, want 5000", cfg.Terminal.Scrollback)
	}
	if cfg.Terminal.ResizeOnOpen {
		t.Error("Terminal.ResizeOnOpen = true, want false")
	}

	// Defaults should still be applied for unspecified fields.
	if cfg.Server.GottyPath != "/gotty/" {
		t.Errorf("Server.GottyPath = %q, want default", cfg.Server.GottyPath)
	}
	if !cfg.Terminal.CursorBlink {
		t.Error("Terminal.CursorBlink should default to true")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() of malformed YAML should fail")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MUXTERM_SERVER_URL", "http://10.0.0.5:9000")
	t.Setenv("MUXTERM_SERVER_GOTTY_PATH", "/term/")
	t.Setenv("MUXTERM_DISCOVERY_MODE", "pull")
	t.Setenv("MUXTERM_TERMINAL_KEEPALIVE_INTERVAL", "45s")
	t.Setenv("MUXTERM_UI_AUTO_SELECT", "false")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}

	if cfg.Server.URL != "http://10.0.0.5:9000" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Server.GottyPath != "/term/" {
		t.Errorf("Server.GottyPath = %q", cfg.Server.GottyPath)
	}
	if cfg.Discovery.Mode != ModePull {
		t.Errorf("Discovery.Mode = %q", cfg.Discovery.Mode)
	}
	if cfg.Terminal.KeepaliveInterval != 45*time.Second {
		t.Errorf("KeepaliveInterval = %v, want 45s", cfg.Terminal.KeepaliveInterval)
	}
	if cfg.UI.AutoSelect {
		t.Error("UI.AutoSelect should be overridden to false")
	}
	// Untouched fields keep their values.
	if cfg.Terminal.Scrollback != 1000 {
		t.Errorf("Scrollback = %d, want 1000", cfg.Terminal.Scrollback)
	}
}

func TestApplyEnvBadValue(t *testing.T) {
	t.Setenv("MUXTERM_TERMINAL_SCROLLBACK", "lots")
	if err := Default().ApplyEnv(); err == nil {
		t.Error("ApplyEnv() should reject a non-numeric scrollback")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://x" }, "unsupported scheme"},
		{"no host", func(c *Config) { c.Server.URL = "http://" }, "missing host"},
		{"mode", func(c *Config) { c.Discovery.Mode = "carrier-pigeon" }, "discovery.mode"},
		{"interval", func(c *Config) { c.Discovery.Interval = 0 }, "discovery.interval"},
		{"scrollback", func(c *Config) { c.Terminal.Scrollback = -1 }, "terminal.scrollback"},
		{"keepalive", func(c *Config) { c.Terminal.KeepaliveInterval = time.Millisecond }, "keepalive_interval"},
		{"sidebar", func(c *Config) { c.UI.SidebarWidth = 3 }, "sidebar_width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Discovery.Mode = "x"
	cfg.Terminal.Scrollback = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "discovery.mode") || !strings.Contains(err.Error(), "terminal.scrollback") {
		t.Errorf("Validate() = %v, want both problems", err)
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ui:\n  sidebar_width: 40\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloads, err := Watch(ctx, path)
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}

	if err := os.WriteFile(path, []byte("ui:\n  sidebar_width: 50\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-reloads:
		if r.Err != nil {
			t.Fatalf("reload error: %v", r.Err)
		}
		if r.Config.UI.SidebarWidth != 50 {
			t.Errorf("SidebarWidth = %d, want 50", r.Config.UI.SidebarWidth)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	for range reloads {
	}
}
