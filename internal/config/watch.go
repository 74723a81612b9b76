package config

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the configuration file into the store whenever it changes on
// disk, so integration tests can swap attribute fixtures without restarting
// the plugin. A file that fails to load keeps the previous configuration
// active.
func Watch(ctx context.Context, path string, store *Store, logger *slog.Logger) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create config watcher", "error", err)
		return
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		logger.Error("watch add failed", "file", path, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				// Editors and atomic writers replace the file; re-add once it
				// reappears.
				go func(name string) {
					for i := 0; i < 5; i++ {
						if err := w.Add(name); err == nil {
							return
						} else if !os.IsNotExist(err) {
							logger.Error("watch re-add failed", "file", name, "error", err)
							return
						}
						time.Sleep(100 * time.Millisecond)
					}
				}(ev.Name)
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				logger.Error("config reload failed, keeping previous", "file", path, "error", err)
				continue
			}
			store.Replace(cfg)
			logger.Info("config reloaded", "file", path, "attributes", len(cfg.Attributes))
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Error("config watch error", "error", err)
		}
	}
}
