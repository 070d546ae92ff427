package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the bursts of events an atomic file replace produces.
const DefaultDebounce = 100 * time.Millisecond

// WatchFile calls onChange each time path is written, created or replaced,
// until ctx is done. The parent directory is watched because stores replace
// files by rename. Errors from onChange are logged and do not stop the watch.
func WatchFile(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, onChange func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info("Starting Watcher", "path", path)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping watcher", "path", path)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug("Change detected", "event", event.String())
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)
		case <-timer.C:
			if err := onChange(ctx); err != nil {
				logger.Error("Reload failed", "path", path, "err", err)
			}
		}
	}
}
