// muxterm is a terminal multiplexer client for a remote tmux session server.
// It lists the server's sessions in a sidebar and attaches one terminal per
// selected session over the gotty websocket protocol, keeping background
// sessions connected and flagging their new output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/remote-vibecode/muxterm/internal/app"
	"github.com/remote-vibecode/muxterm/internal/client"
	"github.com/remote-vibecode/muxterm/internal/config"
	"github.com/remote-vibecode/muxterm/internal/mock"
	"github.com/remote-vibecode/muxterm/internal/mux"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		serverURL  string
		discovery  string
		logFile    string
		logLevel   string
		useMock    bool
	)
	flags := pflag.NewFlagSet("muxterm", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML config file (watched for changes)")
	flags.StringVarP(&serverURL, "url", "u", "", "session server base URL, e.g. http://127.0.0.1:8080")
	flags.StringVar(&discovery, "discovery", "", `session discovery mode: "push" or "pull"`)
	flags.StringVar(&logFile, "log-file", "", "write logs to this file (logging is off otherwise)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&useMock, "mock", false, "run against a built-in mock server")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if discovery != "" {
		cfg.Discovery.Mode = discovery
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if useMock {
		addr, err := startMock(ctx, logger.WithPrefix("mock"))
		if err != nil {
			return err
		}
		cfg.Server.URL = "http://" + addr
		logger.Info("mock server listening", "addr", addr)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dialer, err := client.NewGottyDialer(cfg.Server.URL, cfg.Server.GottyPath)
	if err != nil {
		return err
	}
	ws := mux.New(mux.Options{
		Transport:         dialer,
		Terminal:          app.TerminalConfig(cfg),
		KeepaliveInterval: cfg.Terminal.KeepaliveInterval,
		ResizeOnOpen:      cfg.Terminal.ResizeOnOpen,
		Logger:            logger.WithPrefix("mux"),
	})
	defer ws.Close()

	var feed *client.DiscoveryClient
	if cfg.Discovery.Mode == config.ModePush {
		feedURL, err := client.WebsocketURL(cfg.Server.URL, cfg.Server.FeedPath)
		if err != nil {
			return err
		}
		feed = client.NewDiscoveryClient(feedURL, cfg.Discovery.RetryDelay, logger.WithPrefix("feed"))
		defer feed.Close()
	}

	var reloads <-chan config.Reload
	if configPath != "" {
		reloads, err = config.Watch(ctx, configPath)
		if err != nil {
			logger.Warn("config watch unavailable", "path", configPath, "err", err)
		}
	}

	m := app.New(app.Options{
		Config:    cfg,
		Workspace: ws,
		HTTP:      client.NewHTTPClient(cfg.Server.URL, cfg.Server.SessionsPath),
		Feed:      feed,
		Reloads:   reloads,
		Logger:    logger.WithPrefix("app"),
	})
	logger.Info("starting", "server", cfg.Server.URL, "discovery", cfg.Discovery.Mode)

	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// newLogger writes to the configured file, or nowhere: stdout belongs to the
// TUI.
func newLogger(cfg config.LogConfig) (*log.Logger, func(), error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		lvl, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = lvl
	}

	var out io.Writer = io.Discard
	closeFn := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}
	logger := log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.StampMilli,
	})
	return logger, closeFn, nil
}

// startMock serves the mock session server on a loopback port until ctx ends.
func startMock(ctx context.Context, logger *log.Logger) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("mock listen: %w", err)
	}
	srv := mock.NewServer(logger, nil)
	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mock server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
		httpSrv.Close()
	}()
	mock.NewGenerator(srv).Start(ctx)
	return ln.Addr().String(), nil
}
