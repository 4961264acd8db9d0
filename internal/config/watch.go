package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Reload is the result of re-reading the config file after it changed.
type Reload struct {
	Config *Config
	Err    error
}

// Watch re-resolves path whenever it is written, created or renamed over,
// and delivers the result on the returned channel. The directory is watched
// rather than the file so editors that replace the file are seen. The
// channel closes when ctx ends.
func Watch(ctx context.Context, path string) (<-chan Reload, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan Reload, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		timer := time.NewTimer(reloadDebounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				timer.Reset(reloadDebounce)
			case <-timer.C:
				cfg, err := Resolve(abs)
				select {
				case out <- Reload{Config: cfg, Err: err}:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}
