// Package watcher reruns the merge when Python sources under the
// project root change. Events are debounced so one editor save triggers
// one run, and reruns are rate limited to survive save storms.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"golang.org/x/time/rate"

	"symphony/internal/observability"
)

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	root       string
	debounce   time.Duration
	excludes   []glob.Glob
	limiter    *rate.Limiter
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
}

func New(root string, debounce time.Duration, maxRunsPerSecond float64, excludes []glob.Glob, onChange func([]string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      root,
		debounce:  debounce,
		excludes:  excludes,
		limiter:   rate.NewLimiter(rate.Limit(maxRunsPerSecond), 1),
		onChange:  onChange,
		pending:   make(map[string]time.Time),
	}, nil
}

func (w *Watcher) Start() error {
	if err := w.watchRecursive(w.root); err != nil {
		return err
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.excluded(path) || strings.HasPrefix(filepath.Base(path), ".") && path != root {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.excluded(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if !w.relevant(event.Name) {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges()
	})
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}

	if !w.limiter.Allow() {
		observability.WatcherRunsThrottledTotal.Inc()
		slog.Debug("rerun throttled", "changes", len(paths))
		return
	}

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// relevant keeps only Python sources that are not excluded. Merged
// output is skipped so a run never retriggers itself.
func (w *Watcher) relevant(path string) bool {
	if !strings.HasSuffix(path, ".py") {
		return false
	}
	return !w.excluded(path)
}

func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.excludes {
		if g.Match(rel) || g.Match(filepath.Base(path)) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if !w.relevant(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
