package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

// Watcher is an fsnotify watcher that tracks which directories it watches so
// a tree is never registered twice.
type Watcher struct {
	fs     *fsnotify.Watcher
	skip   func(abs string) bool
	logger *slog.Logger

	mu      sync.Mutex
	watched map[string]struct{}
}

// NewWatcher creates a watcher. Directories for which skip returns true are
// never watched, nor is anything below them.
func NewWatcher(skip func(abs string) bool, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "failed to create filesystem watcher").Fatal().Build()
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{fs: fw, skip: skip, logger: logger, watched: make(map[string]struct{})}, nil
}

func (w *Watcher) Events() <-chan fsnotify.Event { return w.fs.Events }
func (w *Watcher) Errors() <-chan error          { return w.fs.Errors }

// AddTree watches dir and every directory below it that is not hidden,
// node_modules or skipped. It returns the number of newly watched directories.
func (w *Watcher) AddTree(dir string) (int, error) {
	root := filepath.Clean(dir)
	added := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if (path != root && ignoredDir(d.Name())) || w.skip(path) {
			return filepath.SkipDir
		}
		if w.Add(path) {
			added++
		}
		return nil
	})
	if err != nil {
		return added, ferrors.WrapError(err, ferrors.CategoryWatch, "failed to watch directory tree").
			WithContext("dir", root).
			Build()
	}
	return added, nil
}

func ignoredDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// Add watches a single directory and reports whether it was newly added.
func (w *Watcher) Add(path string) bool {
	path = filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[path]; ok {
		return false
	}
	if err := w.fs.Add(path); err != nil {
		w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		return false
	}
	w.watched[path] = struct{}{}
	return true
}

// Forget drops dir and every watched directory below it. The kernel watch is
// usually gone already after a remove, so errors from fsnotify are ignored.
func (w *Watcher) Forget(dir string) int {
	root := filepath.Clean(dir)
	prefix := root + string(filepath.Separator)
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for p := range w.watched {
		if p == root || strings.HasPrefix(p, prefix) {
			_ = w.fs.Remove(p)
			delete(w.watched, p)
			n++
		}
	}
	return n
}

func (w *Watcher) IsWatched(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[filepath.Clean(dir)]
	return ok
}

func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
