// Package watch reloads the policy engine when its source files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Reloader is anything that can re-read its sources.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Watcher calls Reload whenever one of its files is written, created or
// renamed into place. Parent directories are watched so that editors which
// replace files atomically are seen.
type Watcher struct {
	reloader Reloader
	logger   *slog.Logger
	files    map[string]bool
	watcher  *fsnotify.Watcher
}

// New creates a watcher over files. Empty names are ignored.
func New(reloader Reloader, logger *slog.Logger, files ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		reloader: reloader,
		logger:   logger,
		files:    make(map[string]bool),
		watcher:  fw,
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolving %s: %w", f, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run processes file events until ctx is done. Reload failures are logged
// and the previous policy stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("policy file changed", "file", event.Name, "op", event.Op.String())
			w.consumeExtraEvents()
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.files[filepath.Clean(event.Name)]
}

func (w *Watcher) consumeExtraEvents() {
	for {
		select {
		case <-w.watcher.Events:
		default:
			return
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	if err := w.reloader.Reload(ctx); err != nil {
		w.logger.Error("policy reload failed", "error", err)
		return
	}
	w.logger.Info("policy reloaded")
}
