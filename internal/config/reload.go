package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches a configuration file and invokes a callback with the
// freshly loaded config after changes settle.
type Reloader struct {
	watcher *fsnotify.Watcher
	path    string
	apply   func(*Config)
}

// NewReloader creates a file watcher for path. apply runs on the watcher
// goroutine after each successful reload.
func NewReloader(path string, apply func(*Config)) (*Reloader, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	return &Reloader{watcher: watcher, path: path, apply: apply}, nil
}

// Run watches for file changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	// Debounce: wait 500ms after the last write before reloading.
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cfg, err := Load(r.path)
					if err != nil {
						fmt.Fprintf(os.Stderr, "config: hot-reload failed: %v\n", err)
						return
					}
					r.apply(cfg)
					fmt.Fprintf(os.Stderr, "config: hot-reload: %s applied\n", r.path)
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "config: file watcher error: %v\n", err)
		}
	}
}
