// Package reload watches the configuration file and applies storage
// provider changes at runtime.
package reload

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/lightnote/internal/provider"
)

// LoadFunc re-reads the provider configuration from disk.
type LoadFunc func() (provider.Config, error)

// ApplyFunc swaps the active provider to the given configuration.
type ApplyFunc func(ctx context.Context, cfg provider.Config) error

// Watch starts an fsnotify watcher on the config file's directory and
// reapplies the provider configuration after each change, until ctx is
// cancelled. Editors replace files rather than write in place, so the
// watch is on the parent directory and events are matched by name.
//
// Bursts of write events are debounced; only the settled state is
// applied. A failed reload keeps the current provider and is logged,
// never fatal.
func Watch(ctx context.Context, configPath string, logger *slog.Logger, load LoadFunc, apply ApplyFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(configPath)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Base(configPath)

	logger.Info("config watcher: started", slog.String("path", configPath))

	// reloadTimer debounces bursts of write events from editors.
	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("config watcher: stopped")
			return nil

		case <-reloadCh:
			cfg, err := load()
			if err != nil {
				logger.Warn("config watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			if err := apply(ctx, cfg); err != nil {
				logger.Warn("config watcher: apply failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("config watcher: provider configuration applied",
				slog.String("kind", string(cfg.Kind)))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("config watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
