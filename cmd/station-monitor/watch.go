package main

import (
	"context"
	"fmt"
	stdlog "log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// configSettle is how long the config file must stay quiet after a change
// before a reload fires. Editors write in several steps per save; reloading
// on the first event would parse a half-written file, reject it, and then
// never see the finished one.
const configSettle = 500 * time.Millisecond

// WatchConfig reloads the station whenever the config file changes on
// disk. An invalid new config is logged and the running station stays
// live. Watching stops when ctx is cancelled.
func (s *Server) WatchConfig(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	target, err := filepath.Abs(s.config.ConfigPath)
	if err != nil {
		watcher.Close()
		return err
	}

	// Watch the directory, not the file: editors replace files by rename,
	// which would silently detach a watch on the file itself.
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var pending <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				abs, err := filepath.Abs(ev.Name)
				if err != nil || abs != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				pending = time.After(configSettle)

			case <-pending:
				pending = nil
				stdlog.Printf("Config change detected, reloading %s", s.config.ConfigPath)
				if err := s.Reload(ctx); err != nil {
					stdlog.Printf("Reload failed: %v", err)
					continue
				}
				stdlog.Printf("Reload complete")

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				stdlog.Printf("Config watcher error: %v", err)
			}
		}
	}()

	return nil
}
