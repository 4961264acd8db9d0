package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// MUXTERM_SERVER_URL or MUXTERM_TERMINAL_KEEPALIVE_INTERVAL.
const EnvPrefix = "MUXTERM"

const (
	ModePull = "pull"
	ModePush = "push"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Terminal  TerminalConfig  `yaml:"terminal"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	URL          string `yaml:"url"`
	GottyPath    string `yaml:"gotty_path" split_words:"true"`
	SessionsPath string `yaml:"sessions_path" split_words:"true"`
	FeedPath     string `yaml:"feed_path" split_words:"true"`
}

type DiscoveryConfig struct {
	Mode       string        `yaml:"mode"`
	Interval   time.Duration `yaml:"interval"`
	RetryDelay time.Duration `yaml:"retry_delay" split_words:"true"`
}

type TerminalConfig struct {
	Scrollback        int           `yaml:"scrollback"`
	CursorBlink       bool          `yaml:"cursor_blink" split_words:"true"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval" split_words:"true"`
	ResizeOnOpen      bool          `yaml:"resize_on_open" split_words:"true"`
}

type UIConfig struct {
	SidebarWidth int  `yaml:"sidebar_width" split_words:"true"`
	AutoSelect   bool `yaml:"auto_select" split_words:"true"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:          "http://127.0.0.1:8080",
			GottyPath:    "/gotty/",
			SessionsPath: "/api/v1/tmux/sessions",
			FeedPath:     "/api/v1/sessions/ws",
		},
		Discovery: DiscoveryConfig{
			Mode:       ModePush,
			Interval:   2 * time.Second,
			RetryDelay: 2 * time.Second,
		},
		Terminal: TerminalConfig{
			Scrollback:        1000,
			CursorBlink:       true,
			KeepaliveInterval: 30 * time.Second,
			ResizeOnOpen:      true,
		},
		UI: UIConfig{
			SidebarWidth: 32,
			AutoSelect:   true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MUXTERM_* environment variables. Unset
// variables leave the field alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Server.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("server.url %q: missing host", c.Server.URL))
	case u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Errorf("server.url %q: unsupported scheme", c.Server.URL))
	}
	if c.Server.GottyPath == "" {
		errs = append(errs, errors.New("server.gotty_path is required"))
	}
	switch c.Discovery.Mode {
	case ModePull, ModePush:
	default:
		errs = append(errs, fmt.Errorf("discovery.mode %q: want %q or %q", c.Discovery.Mode, ModePull, ModePush))
	}
	if c.Discovery.Interval <= 0 {
		errs = append(errs, errors.New("discovery.interval must be positive"))
	}
	if c.Discovery.RetryDelay <= 0 {
		errs = append(errs, errors.New("discovery.retry_delay must be positive"))
	}
	if c.Terminal.Scrollback <= 0 {
		errs = append(errs, errors.New("terminal.scrollback must be positive"))
	}
	if c.Terminal.KeepaliveInterval < time.Second {
		errs = append(errs, errors.New("terminal.keepalive_interval must be at least 1s"))
	}
	if c.UI.SidebarWidth < 16 {
		errs = append(errs, errors.New("ui.sidebar_width must be at least 16"))
	}
	return errors.Join(errs...)
}

// Resolve is Load, ApplyEnv and Validate in order.
func Resolve(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
