package indexing

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/codegraph/internal/debug"
)

// EventType is the kind of change seen for a path.
type EventType int

const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	}
	return fmt.Sprintf("EventType(%d)", int(e))
}

// WatchStats reports watcher activity.
type WatchStats struct {
	Events    int64     `json:"events"`
	Batches   int64     `json:"batches"`
	Runs      int64     `json:"runs"`
	Errors    int64     `json:"errors"`
	LastEvent time.Time `json:"last_event"`
	LastError string    `json:"last_error,omitempty"`
}

// RunFunc is told about every run the watcher triggers.
type RunFunc func(changed map[string]EventType, report *RunReport, err error)

// Watcher re-runs a pipeline when source files under its root change.
// Bursts of events are debounced into one run.
type Watcher struct {
	fsw      *fsnotify.Watcher
	pipeline *Pipeline
	scanner  *Scanner
	debounce time.Duration
	onRun    RunFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]EventType
	ready   map[string]EventType
	timer   *time.Timer
	trigger chan struct{}

	statsMu sync.RWMutex
	stats   WatchStats
}

// NewWatcher creates a watcher over the pipeline's root. onRun may be nil.
func NewWatcher(p *Pipeline, onRun RunFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := time.Duration(p.Config().Watch.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Watcher{
		fsw:      fsw,
		pipeline: p,
		scanner:  p.Scanner(),
		debounce: debounce,
		onRun:    onRun,
		pending:  make(map[string]EventType),
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Start adds watches for every directory under the root and begins
// processing events. It returns once the watches are in place.
func (w *Watcher) Start(ctx context.Context) error {
	root := w.scanner.Root()
	debug.LogWatch("starting watcher for %s\n", root)

	if err := w.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.processEvents()
	go w.runLoop()
	return nil
}

// Stop cancels any run in progress, closes the watches and waits for the
// watcher's goroutines. Pending events are dropped.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	debug.LogWatch("watcher stopped\n")
	return err
}

// Stats returns a copy of the watcher's counters.
func (w *Watcher) Stats() WatchStats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	return w.stats
}

// addWatches watches dir and every directory below it that the scanner
// would descend into. WalkDir does not follow symlinks, so cycles cannot
// occur.
func (w *Watcher) addWatches(dir string) error {
	root := w.scanner.Root()
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root {
			rel, err := filepath.Rel(root, path)
			if err == nil && w.scanner.SkipDir(filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			debug.LogWatch("failed to watch %s: %v\n", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.recordError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.scanner.Root(), event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	var kind EventType
	switch {
	case event.Has(fsnotify.Create):
		kind = EventCreate
	case event.Has(fsnotify.Write):
		kind = EventWrite
	case event.Has(fsnotify.Remove):
		kind = EventRemove
	case event.Has(fsnotify.Rename):
		kind = EventRename
	default:
		return
	}

	info, statErr := os.Stat(event.Name)
	if statErr == nil && info.IsDir() {
		if kind == EventCreate && !w.scanner.SkipDir(rel) {
			// The directory may already hold files by the time it is watched
			if err := w.addWatches(event.Name); err != nil {
				w.recordError(err)
			}
			w.addEvent(rel, kind)
		}
		return
	}

	if !w.scanner.Accepts(rel) {
		return
	}
	if statErr == nil {
		if limit := w.pipeline.Config().Extract.MaxFileSize; limit > 0 && info.Size() > limit {
			debug.LogWatch("ignoring oversized %s\n", rel)
			return
		}
	}
	debug.LogWatch("%s %s\n", kind, rel)
	w.addEvent(rel, kind)
}

// addEvent records the latest event for a path and restarts the debounce
// timer.
func (w *Watcher) addEvent(rel string, kind EventType) {
	w.statsMu.Lock()
	w.stats.Events++
	w.stats.LastEvent = time.Now()
	w.statsMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[rel] = kind
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush hands the pending batch to the run loop. Batches arriving while a
// run is in progress merge into one follow-up run.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	if w.ready == nil {
		w.ready = w.pending
	} else {
		for k, v := range w.pending {
			w.ready[k] = v
		}
	}
	w.pending = make(map[string]EventType)
	w.mu.Unlock()

	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) runLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.trigger:
		}

		w.mu.Lock()
		batch := w.ready
		w.ready = nil
		w.mu.Unlock()
		if len(batch) == 0 {
			continue
		}

		w.statsMu.Lock()
		w.stats.Batches++
		w.statsMu.Unlock()

		start := time.Now()
		report, err := w.pipeline.Run(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.recordError(err)
		} else {
			w.statsMu.Lock()
			w.stats.Runs++
			w.statsMu.Unlock()
			debug.LogWatch("re-indexed after %d changes in %v\n", len(batch), time.Since(start))
		}
		if w.onRun != nil {
			w.onRun(batch, report, err)
		}
	}
}

func (w *Watcher) recordError(err error) {
	debug.LogWatch("watcher error: %v\n", err)
	w.statsMu.Lock()
	w.stats.Errors++
	w.stats.LastError = err.Error()
	w.statsMu.Unlock()
}
