package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// ReloadFunc is called after every reload attempt triggered by the watcher.
type ReloadFunc func(records int, err error)

// DatasetWatcher reloads an AllocationStore when its dataset file changes.
// Every reload is a full LoadFile; a failed reload keeps the previous data.
type DatasetWatcher struct {
	path     string
	store    *AllocationStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload ReloadFunc

	mu    sync.Mutex
	timer *time.Timer
}

// WatchOption configures a DatasetWatcher.
type WatchOption func(*DatasetWatcher)

// WithDebounce collapses bursts of file events into one reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *DatasetWatcher) {
		w.debounce = d
	}
}

// WithReloadFunc registers a callback for reload results.
func WithReloadFunc(fn ReloadFunc) WatchOption {
	return func(w *DatasetWatcher) {
		w.onReload = fn
	}
}

// WatchDataset starts watching the directory that holds path. Editors and
// deploy tools often replace files by rename, which a file watch would miss.
func WatchDataset(path string, store *AllocationStore, opts ...WatchOption) (*DatasetWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to watch directory %s: %w", dir, err),
			fsWatcher.Close(),
		)
	}

	w := &DatasetWatcher{
		path:     path,
		store:    store,
		watcher:  fsWatcher,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *DatasetWatcher) Run(ctx context.Context) error {
	defer w.stop()

	filename := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("dataset watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *DatasetWatcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload(ctx)
	})
}

func (w *DatasetWatcher) reload(ctx context.Context) {
	start := time.Now()
	n, err := w.store.LoadFile(ctx, w.path)
	if err != nil {
		slog.Error("dataset reload failed, keeping previous data", "path", w.path, "error", err)
	} else {
		slog.Info("dataset reloaded", "path", w.path, "records", n, "duration_ms", time.Since(start).Milliseconds())
	}
	if w.onReload != nil {
		w.onReload(n, err)
	}
}

func (w *DatasetWatcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		slog.Warn("failed to close dataset watcher", "error", err)
	}
}
