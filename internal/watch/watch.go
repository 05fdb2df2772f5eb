// Package watch implements a fallback filesystem watcher used when the
// client does not declare
// capabilities.workspace.didChangeWatchedFiles.dynamicRegistration: the
// core falls back to watching the workspace itself instead of relying on
// the client to forward workspace/didChangeWatchedFiles notifications.
//
// Grounded on
// _examples/WaylonWalker-markata-go/cmd/markata-go/cmd/serve.go's
// fsnotify-based watchFiles/addDirRecursive loop, and its
// pkg/plugins/glob.go's doublestar.Match usage for pattern filtering.
package watch

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/WaylonWalker/lsp-core/internal/logging"
	"github.com/WaylonWalker/lsp-core/internal/protocol"
)

// Watcher recursively watches a root directory and reports changes as
// LSP FileEvents, filtered by a set of glob patterns.
type Watcher struct {
	logger   *logging.Logger
	fsw      *fsnotify.Watcher
	patterns []string
	root     string

	events chan []protocol.FileEvent
	done   chan struct{}
}

// New creates a Watcher rooted at root, recursively watching every
// directory beneath it. patterns (doublestar glob syntax, e.g.
// "**/*.f90") restrict which paths are reported; a nil or empty patterns
// matches everything.
func New(root string, patterns []string, logger *logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		logger:   logger,
		fsw:      fsw,
		patterns: patterns,
		root:     root,
		events:   make(chan []protocol.FileEvent, 16),
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Events returns the channel of batched file-change events. Each receive
// corresponds to one underlying fsnotify.Event that passed the pattern
// filter.
func (w *Watcher) Events() <-chan []protocol.FileEvent {
	return w.events
}

// Close stops the watcher and releases its underlying OS resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil && w.logger != nil {
				w.logger.Warnf("watch: failed to add %s: %v", path, addErr)
			}
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Errorf("watch: %v", err)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !w.matches(event.Name) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if addErr := w.fsw.Add(event.Name); addErr != nil && w.logger != nil {
				w.logger.Warnf("watch: failed to add new directory %s: %v", event.Name, addErr)
			}
		}
	}

	changeType, ok := fileChangeType(event.Op)
	if !ok {
		return
	}

	w.events <- []protocol.FileEvent{{
		URI:  "file://" + event.Name,
		Type: changeType,
	}}
}

func fileChangeType(op fsnotify.Op) (int, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return protocol.FileChangeTypeCreated, true
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return protocol.FileChangeTypeDeleted, true
	case op&fsnotify.Write != 0:
		return protocol.FileChangeTypeChanged, true
	default:
		return 0, false
	}
}

func (w *Watcher) matches(path string) bool {
	if len(w.patterns) == 0 {
		return true
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
