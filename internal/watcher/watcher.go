// Package watcher watches section source files with fsnotify and reports
// debounced changes so cached text can be dropped.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// ChangeFunc is called with the cleaned path of a watched file that was
// written, replaced, or removed.
type ChangeFunc func(path string, removed bool)

// Watcher watches individual files through their parent directories.
type Watcher struct {
	onChange    ChangeFunc
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	files       map[string]bool
	dirs        map[string]int // dir -> number of watched files in it
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a file must stay quiet before onChange fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for files. onChange receives debounced writes
// and immediate removals.
func NewWatcher(files []string, onChange ChangeFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		onChange:    onChange,
		debounce:    defaultDebounce,
		files:       make(map[string]bool),
		dirs:        make(map[string]int),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, f := range files {
		w.files[cleanPath(f)] = true
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
// Files whose directory does not exist are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.started = true
	for f := range w.files {
		w.addDirLocked(filepath.Dir(f))
	}
	w.logger.Debug("watcher starting", zap.Int("files", len(w.files)), zap.Int("dirs", len(w.dirs)))
	w.mu.Unlock()
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := cleanPath(ev.Name)
	w.mu.Lock()
	watched := w.files[path]
	w.mu.Unlock()
	if !watched {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if w.onChange != nil {
			w.onChange(path, true)
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.debounceChange(path)
	}
}

func (w *Watcher) debounceChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("watched file changed (debounced)", zap.String("path", path))
		if w.onChange != nil {
			w.onChange(path, false)
		}
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// Add starts watching path. It is a no-op for files already watched.
func (w *Watcher) Add(path string) error {
	path = cleanPath(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files[path] {
		return nil
	}
	w.files[path] = true
	if w.watcher == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if w.dirs[dir] > 0 {
		w.dirs[dir]++
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		delete(w.files, path)
		return err
	}
	w.dirs[dir] = 1
	w.logger.Debug("watcher directory added", zap.String("path", dir))
	return nil
}

// addDirLocked watches dir for one more file, adding it to fsnotify on first use.
func (w *Watcher) addDirLocked(dir string) {
	if w.dirs[dir] > 0 {
		w.dirs[dir]++
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("cannot watch directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.dirs[dir] = 1
}

// Remove stops watching path. Its directory is released when no watched file remains in it.
func (w *Watcher) Remove(path string) error {
	path = cleanPath(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return nil
	}
	delete(w.files, path)
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
	dir := filepath.Dir(path)
	if w.dirs[dir] == 0 {
		return nil
	}
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if w.watcher != nil {
		_ = w.watcher.Remove(dir)
		w.logger.Debug("watcher directory removed", zap.String("path", dir))
	}
	return nil
}

// Files returns the watched file paths, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

