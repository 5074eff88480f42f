package report

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/weiihann/heft/harness"
)

// Watch monitors a payload file and calls onChange with the newly loaded
// payload each time it is written. It runs until ctx is cancelled. A
// payload that fails to load is logged and skipped.
func Watch(
	ctx context.Context,
	path string,
	logger *slog.Logger,
	onChange func(*harness.Payload),
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: WriteFile replaces the payload by rename.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)

	logger.InfoContext(ctx, "watching payload", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			p, err := ReadFile(path)
			if err != nil {
				logger.WarnContext(ctx, "reload payload failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)

				continue
			}

			logger.DebugContext(ctx, "payload reloaded", slog.String("path", path))
			onChange(p)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watcher error", slog.String("error", err.Error()))
		}
	}
}
