// Package watch turns filesystem change notifications into the batched,
// settled path lists buildapi.Watch feeds to Tracker.NextBuild. It is
// grounded on theRebelliousNerd-codenerd/internal/core/mangle_watcher.go's
// debounced fsnotify loop, generalized from one hardcoded ".nerd/mangle"
// directory into whatever paths the caller adds: buildapi.Session.Watch
// adds the file of every asset in the graph after each successful build.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Kind classifies a filesystem change the same way mangle_watcher's
// handleEvent switch does, as a typed enum instead of a string.
type Kind int

const (
	Create Kind = iota
	Modify
	Remove
	Rename
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Remove:
		return "remove"
	case Rename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is one settled, debounced change to a watched path.
type Event struct {
	Kind Kind
	Path string
}

// DefaultDebounce matches mangle_watcher's 500ms settle window.
const DefaultDebounce = 500 * time.Millisecond

// Watcher batches fsnotify events per path, waiting for Debounce to pass
// since a path's last event before reporting it, so a burst of editor
// saves produces one Event per path instead of one per write(2) call.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]Kind
	seen    map[string]time.Time

	events  chan []Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool

	watchedDirs map[string]bool
}

// New constructs a Watcher. logger may be nil, in which case watch errors
// are dropped instead of logged.
func New(logger *zap.Logger, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:         fsw,
		logger:      logger,
		debounce:    debounce,
		pending:     make(map[string]Kind),
		seen:        make(map[string]time.Time),
		events:      make(chan []Event),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		watchedDirs: make(map[string]bool),
	}, nil
}

// Add registers path for watching. fsnotify only watches directories, so a
// file path is resolved to its containing directory first. Events reports
// the path fsnotify names for each change, so changes to any file in a
// watched directory are reported, not only the files that were added.
func (w *Watcher) Add(path string) error {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}
	if w.watchedDirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watchedDirs[dir] = true
	return nil
}

// Events returns the channel settled, debounced batches are sent on. Each
// batch holds every path whose debounce window elapsed since the last
// flush tick.
func (w *Watcher) Events() <-chan []Event { return w.events }

// Run drives the watch loop until ctx is cancelled or Close is called. It
// is meant to run on its own goroutine; callers read Events() concurrently.
func (w *Watcher) Run(ctx context.Context) {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
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
			if w.logger != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		case <-ticker.C:
			w.flushSettled()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	var kind Kind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Create
	case ev.Op&fsnotify.Write != 0:
		kind = Modify
	case ev.Op&fsnotify.Remove != 0:
		kind = Remove
	case ev.Op&fsnotify.Rename != 0:
		kind = Rename
	default:
		return // Chmod and similar are not build-relevant.
	}

	w.mu.Lock()
	w.pending[ev.Name] = kind
	w.seen[ev.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flushSettled() {
	w.mu.Lock()
	now := time.Now()
	var batch []Event
	for path, lastSeen := range w.seen {
		if now.Sub(lastSeen) < w.debounce {
			continue
		}
		batch = append(batch, Event{Kind: w.pending[path], Path: path})
		delete(w.pending, path)
		delete(w.seen, path)
	}
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	select {
	case w.events <- batch:
	case <-w.stopCh:
	}
}

// Close stops Run and releases the underlying fsnotify watcher. Safe to
// call even if Run was never started.
func (w *Watcher) Close() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	close(w.stopCh)
	if started {
		<-w.doneCh
	}
	return w.fsw.Close()
}
