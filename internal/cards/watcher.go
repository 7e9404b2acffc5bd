package cards

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the library whenever a template in the cards directory
// changes. Events are debounced so one editor save triggers one reload.
func (l *Library) Watch(ctx context.Context, logger *slog.Logger) error {
	if l.dir == "" {
		<-ctx.Done()
		return nil
	}
	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fileWatcher.Close()

	if err := fileWatcher.Add(l.dir); err != nil {
		logger.Info("cards directory not watchable, using builtins", "dir", l.dir, "error", err)
		<-ctx.Done()
		return nil
	}
	logger.Info("cards watcher started", "dir", l.dir)

	var debounce *time.Timer
	reload := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			logger.Info("cards watcher stopped")
			return nil
		case event := <-fileWatcher.Events:
			if !strings.HasSuffix(event.Name, ".json.tmpl") {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			l.Reload()
			logger.Info("card templates reloaded")
		case err := <-fileWatcher.Errors:
			if err != nil {
				logger.Error("cards watcher error", "error", err)
			}
		}
	}
}
