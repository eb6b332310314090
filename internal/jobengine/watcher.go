package jobengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/torvald-bar/bargo/internal/jobconfig"
)

// jobFileSuffix is the on-disk extension for job definition files, as
// distinct from their ".schedule" sidecars.
const jobFileSuffix = ".bar"

// Debouncer coalesces a burst of triggers into a single call to fn after
// quiet settles for the given duration.
type Debouncer struct {
	mu sync.Mutex
	delay time.Duration
	fn func()
	timer *time.Timer
}

// NewDebouncer returns a Debouncer that calls fn delay after the last
// Trigger.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)arms the debounce timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Cancel stops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Watcher discovers job files under a directory and keeps an Engine's job
// list synced to them: new *.bar files are parsed and added, removed files
// drop their JobNode (unless it has an active run), and mtime changes
// trigger a reparse.
type Watcher struct {
	dir string
	engine *Engine
	watcher *fsnotify.Watcher
	debouncer *Debouncer
	cancel context.CancelFunc
	wg sync.WaitGroup
	pollMode bool
}

// NewWatcher creates a job-directory watcher for engine, falling back to a
// 5s poll loop if fsnotify is unavailable.
func NewWatcher(dir string, engine *Engine) *Watcher {
	w := &Watcher{dir: dir, engine: engine}
	w.debouncer = NewDebouncer(500*time.Millisecond, w.rescan)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.pollMode = true
		return w
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		w.pollMode = true
		return w
	}
	w.watcher = fw
	return w
}

// Start begins watching in the background until ctx is canceled. It
// performs an initial synchronous scan before returning so callers see a
// fully populated job list immediately.
func (w *Watcher) Start(ctx context.Context) {
	w.rescan()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if w.pollMode {
		w.startPolling(ctx)
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if strings.HasSuffix(ev.Name, jobFileSuffix) {
					w.debouncer.Trigger()
				}
			case _, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Watcher) startPolling(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.rescan()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// rescan walks dir, adding/reloading/removing JobNodes in the engine to
// match what is on disk.
func (w *Watcher) rescan() {
	seen := map[string]bool{}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), jobFileSuffix) {
			continue
		}
		path := filepath.Join(w.dir, de.Name())
		info, err := de.Info()
		if err != nil {
			continue
		}
		seen[path] = true
		w.engine.syncJobFile(path, info.ModTime())
	}

	w.engine.removeMissing(seen)
}

// Close stops the watcher and releases its fsnotify handle.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.debouncer.Cancel()
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// loadJobFile parses a job file into a fresh JobNode, carrying over any
// prior persisted schedule-info sidecar state is left to the caller since
// that is engine-level bookkeeping, not watcher bookkeeping.
func loadJobFile(path string, mtime time.Time) (*JobNode, error) {
	job, _, err := jobconfig.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}
	return NewJobNode(job, path, mtime), nil
}
