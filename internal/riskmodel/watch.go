package riskmodel

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever the file at path is created, written or renamed into
// place. It watches the parent directory because atomic saves replace the inode.
// The returned channel is closed once the watcher has stopped after ctx is done.
func Watch(ctx context.Context, logger *slog.Logger, path string, onChange func()) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
					logger.Debug("model artifact changed", slog.String("path", target), slog.String("op", event.Op.String()))
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("artifact watcher error", slog.Any("error", err))
			}
		}
	}()
	return done, nil
}
