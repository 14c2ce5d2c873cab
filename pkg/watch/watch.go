// Package watch implements FileWatcher: a fsnotify-driven event
// loop that keeps BackgroundIndex fresh for live edits, with per-URI
// debounce, save-cancels-debounce, delete-cancels-and-removes, and an
// overlap guard against concurrent re-indexes of the same URI.
package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/symgraph/pkg/parser"
)

// Indexer is the subset of BackgroundIndex's write surface FileWatcher
// needs, expressed as an interface so tests can substitute a fake.
type Indexer interface {
	ReindexFile(uri string) error
	RemoveFile(uri string) error
}

// EventKind classifies the filesystem/editor event driving a schedule
// decision.
type EventKind int

const (
	EventChanged EventKind = iota // editor "document-changed" or external filesystem change
	EventSaved                    // editor "document-saved": cancel debounce, reindex now
	EventDeleted                  // filesystem delete: cancel debounce, remove now
)

// Options configures FileWatcher.
type Options struct {
	DebounceMs      int
	ExcludePatterns []string
}

// FileWatcher watches a workspace root and schedules debounced re-indexing
// through Indexer.
type FileWatcher struct {
	fsw     *fsnotify.Watcher
	indexer Indexer
	logger  *slog.Logger
	opts    Options

	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	inProgressMu sync.Mutex
	inProgress   map[string]bool
	deferred     map[string]bool

	stopCh  chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New constructs a FileWatcher. Call Start to begin watching.
func New(indexer Indexer, opts Options, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DebounceMs <= 0 {
		opts.DebounceMs = 600
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		fsw:            fsw,
		indexer:        indexer,
		logger:         logger,
		opts:           opts,
		debounceTimers: make(map[string]*time.Timer),
		inProgress:     make(map[string]bool),
		deferred:       make(map[string]bool),
		stopCh:         make(chan struct{}),
	}, nil
}

// Start adds root and every non-excluded subdirectory to the fsnotify
// watch set, then launches the background event loop.
func (w *FileWatcher) Start(root string) error {
	if err := w.fsw.Add(root); err != nil {
		return err
	}

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})

	w.logger.Info("file watcher started", "root", root)
	go w.eventLoop()
	return nil
}

// Stop cancels every pending debounce timer and closes the watcher.
// Idempotent.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debounceMu.Lock()
	for _, t := range w.debounceTimers {
		t.Stop()
	}
	w.debounceTimers = make(map[string]*time.Timer)
	w.debounceMu.Unlock()

	return w.fsw.Close()
}

func (w *FileWatcher) eventLoop() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

func (w *FileWatcher) handleEvent(ev fsnotify.Event) {
	if w.excluded(ev.Name) {
		return
	}
	if !parser.Indexable(ev.Name) {
		return
	}

	switch {
	case ev.Op&fsnotify.Remove == fsnotify.Remove, ev.Op&fsnotify.Rename == fsnotify.Rename:
		w.Handle(ev.Name, EventDeleted)
	case ev.Op&fsnotify.Write == fsnotify.Write, ev.Op&fsnotify.Create == fsnotify.Create:
		w.Handle(ev.Name, EventChanged)
	}
}

// Handle applies the debounce/overlap-guard state machine for one
// event. Exported so editor-driven events (document-changed,
// document-saved) can be injected directly, not only fsnotify events.
func (w *FileWatcher) Handle(uri string, kind EventKind) {
	switch kind {
	case EventDeleted:
		w.cancelDebounce(uri)
		w.remove(uri)
	case EventSaved:
		w.cancelDebounce(uri)
		w.reindex(uri)
	case EventChanged:
		w.scheduleDebounce(uri)
	}
}

func (w *FileWatcher) scheduleDebounce(uri string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[uri]; ok {
		t.Stop()
	}
	w.debounceTimers[uri] = time.AfterFunc(time.Duration(w.opts.DebounceMs)*time.Millisecond, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, uri)
		w.debounceMu.Unlock()
		w.reindex(uri)
	})
}

func (w *FileWatcher) cancelDebounce(uri string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	if t, ok := w.debounceTimers[uri]; ok {
		t.Stop()
		delete(w.debounceTimers, uri)
	}
}

// reindex enforces the in-progress overlap guard: a second trigger for
// uri arriving while a reindex is already running defers until that
// reindex completes, rather than running concurrently.
func (w *FileWatcher) reindex(uri string) {
	w.inProgressMu.Lock()
	if w.inProgress[uri] {
		w.deferred[uri] = true
		w.inProgressMu.Unlock()
		return
	}
	w.inProgress[uri] = true
	w.inProgressMu.Unlock()

	if err := w.indexer.ReindexFile(uri); err != nil {
		w.logger.Warn("reindex failed", "uri", uri, "error", err)
	}

	w.inProgressMu.Lock()
	w.inProgress[uri] = false
	rerun := w.deferred[uri]
	delete(w.deferred, uri)
	w.inProgressMu.Unlock()

	if rerun {
		w.reindex(uri)
	}
}

func (w *FileWatcher) remove(uri string) {
	if err := w.indexer.RemoveFile(uri); err != nil {
		w.logger.Warn("remove failed", "uri", uri, "error", err)
	}
}

func (w *FileWatcher) excluded(path string) bool {
	base := filepath.Base(path)
	switch base {
	case "node_modules", ".git", "dist", "build", ".next", ".smart-index":
		return true
	}
	for _, pattern := range w.opts.ExcludePatterns {
		if ok, _ := doublestar.PathMatch(pattern, filepath.ToSlash(path)); ok {
			return true
		}
	}
	return false
}

// PendingCount returns the number of URIs with an active debounce timer,
// used by Stats/observability callers.
func (w *FileWatcher) PendingCount() int {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()
	return len(w.debounceTimers)
}
