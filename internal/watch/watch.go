// Package watch flags specs as stale the moment one of their tracked
// files changes on disk, without waiting for the next status request.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/dfalgout/specsentry/internal/logger"
)

var log = logger.ForComponent("watch")

type Config struct {
	DebounceWindow time.Duration
	IgnorePatterns []string
}

// ChangeFunc receives the batch of changed tracked paths after the
// debounce window closes.
type ChangeFunc func(paths []string)

type Watcher struct {
	cfg       Config
	fsWatcher *fsnotify.Watcher
	onChange  ChangeFunc

	mu      sync.Mutex
	tracked map[string][]string // dir -> tracked files within it
	pending map[string]bool
	timer   *time.Timer

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, onChange ChangeFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 300 * time.Millisecond
	}
	return &Watcher{
		cfg:       cfg,
		fsWatcher: fsw,
		onChange:  onChange,
		tracked:   map[string][]string{},
		pending:   map[string]bool{},
		done:      make(chan struct{}),
	}, nil
}

// Track registers a tracked file. The containing directory is watched
// so renames and recreations are seen as well as writes.
func (w *Watcher) Track(path string) error {
	dir := filepath.Dir(path)

	w.mu.Lock()
	files, known := w.tracked[dir]
	w.tracked[dir] = append(files, path)
	w.mu.Unlock()

	if known {
		return nil
	}
	log.Debug("watching directory", "dir", dir)
	return w.fsWatcher.Add(dir)
}

func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return w.fsWatcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.ignored(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isTracked(event.Name) {
		return
	}
	w.pending[event.Name] = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.DebounceWindow, w.flush)
}

func (w *Watcher) isTracked(path string) bool {
	for _, f := range w.tracked[filepath.Dir(path)] {
		if f == path {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	rel := filepath.ToSlash(path)
	for _, pattern := range w.cfg.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make([]string, 0, len(w.pending))
	for p := range w.pending {
		batch = append(batch, p)
	}
	w.pending = map[string]bool{}
	w.mu.Unlock()

	log.Debug("tracked files changed", "count", len(batch))
	w.onChange(batch)
}
