// Package watch triggers rebuilds when version sources change and on a
// fixed interval.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pagebuilder/internal/jsonfile"
	"git.home.luguber.info/inful/pagebuilder/internal/logfields"
)

// DefaultDebounce is the quiet period after the last change before a rebuild
// is requested.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes a directory tree and calls its trigger once changes
// settle.
type Watcher struct {
	root     string
	debounce time.Duration
	trigger  func()
	logger   *slog.Logger

	watcher *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches root and every directory below it. trigger runs on its
// own goroutine after debounce has passed without further changes.
func NewWatcher(root string, debounce time.Duration, trigger func(), logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	wt := &Watcher{root: root, debounce: debounce, trigger: trigger, logger: logger, watcher: w}
	if err := wt.addDirsRecursive(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return wt, nil
}

// Run handles filesystem events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ShouldIgnore(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.watchNewDir(ctx, ev.Name)
		}
	}
	w.logger.DebugContext(ctx, "File change detected", logfields.Path(ev.Name), "op", ev.Op.String())
	w.schedule()
}

// watchNewDir adds a directory created after startup. Failures are logged:
// changes below dir will not trigger rebuilds.
func (w *Watcher) watchNewDir(ctx context.Context, dir string) {
	if err := w.addDirsRecursive(dir); err != nil {
		w.logger.WarnContext(ctx, "Failed to watch new directory", logfields.Path(dir), logfields.Error(err))
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.trigger)
}

func (w *Watcher) close() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("Error closing file watcher", logfields.Error(err))
	}
}

func (w *Watcher) addDirsRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && ShouldIgnore(path) {
				return filepath.SkipDir
			}
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// ShouldIgnore reports whether a change to path must not trigger a rebuild:
// hidden files, editor swap and backup files, temporary JSON writes and OS
// metadata files.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, jsonfile.TempSuffix) ||
		(strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#")) {
		return true
	}
	return base == "Thumbs.db"
}
