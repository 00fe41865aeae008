package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mamaar/methodobject/pkg/analysis"
)

// DefaultDebounce is the quiet period after which pending changes are
// delivered as one batch.
const DefaultDebounce = 100 * time.Millisecond

// ChangeEvent represents a single filesystem change to a .go file.
type ChangeEvent struct {
	Path    string
	Removed bool
}

// Watcher watches a workspace for .go file changes and emits debounced batches.
type Watcher struct {
	rootPath string
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a Watcher that recursively watches rootPath. It skips
// the directories the parser skips.
func NewWatcher(rootPath string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		rootPath: rootPath,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
	}
	if _, err := w.addTree(rootPath); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds dir and its package directories to the watch set and returns
// the .go files already inside them.
func (w *Watcher) addTree(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if strings.HasSuffix(path, ".go") {
				files = append(files, path)
			}
			return nil
		}
		if path != w.rootPath && analysis.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
	return files, err
}

// Run is the main event loop. It debounces rapid edits and sends batched
// ChangeEvents to out. It blocks until ctx is cancelled or the fsnotify
// channels close.
func (w *Watcher) Run(ctx context.Context, out chan<- []ChangeEvent) error {
	pending := make(map[string]bool) // path -> removed
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			// A directory created together with its files (extraction into a
			// new package) reports no events for those files.
			if ev.Op&fsnotify.Create != 0 {
				for _, f := range w.maybeAddDir(ev.Name) {
					pending[f] = false
					timer.Reset(w.debounce)
				}
			}
			if w.accept(ev) {
				pending[ev.Name] = ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "err", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]ChangeEvent, 0, len(pending))
			for p, removed := range pending {
				batch = append(batch, ChangeEvent{Path: p, Removed: removed})
			}
			pending = make(map[string]bool)

			select {
			case out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close shuts down the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) accept(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, ".go") {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// maybeAddDir watches path when it is a new directory and returns the .go
// files it already holds.
func (w *Watcher) maybeAddDir(path string) []string {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || analysis.SkipDir(info.Name()) {
		return nil
	}
	files, err := w.addTree(path)
	if err != nil {
		w.logger.Debug("could not add to watch", "path", path, "err", err)
	}
	return files
}
