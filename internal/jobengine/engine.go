package jobengine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/torvald-bar/bargo/internal/barlog"
	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/jobconfig"
	"github.com/torvald-bar/bargo/internal/schedule"
	"github.com/torvald-bar/bargo/internal/slave"
)

// Default periods for the engine's background cooperative threads, used
// when a caller leaves the corresponding Engine field at its zero value.
const (
	defaultSchedulerPeriod = 60 * time.Second
	defaultPairingPeriod = 60 * time.Second
	defaultPairingTimeout = 120 * time.Second
	defaultSlaveConnectPeriod = 60 * time.Second
	defaultPausePeriod = 60 * time.Second
	defaultMaintenancePeriod = 10 * time.Minute
)

// Dispatcher runs a triggered job to completion, local or remote. It is
// supplied by the caller (cmd/bar) since actual archive/restore execution
// sits outside this package's scope.
type Dispatcher interface {
	Dispatch(ctx context.Context, node *JobNode) error
}

// Engine owns the in-memory job list, the paired-slave list, and the
// background cooperative threads that drive scheduling, retention and
// slave connectivity.
type Engine struct {
	mu sync.Mutex
	jobs map[string]*JobNode // keyed by file path

	Slaves *slave.List

	Dispatcher Dispatcher
	Retention []catalog.ArchiveType // not read by the engine; retention runs only through the PurgeExpired hook

	// IndexUpdate and PurgeExpired are optional hooks run on the
	// maintenance tick; nil hooks are skipped. They are owned by the
	// caller because they need a live *catalog.Index / *dbengine.Handle.
	IndexUpdate func(ctx context.Context) error
	PurgeExpired func(ctx context.Context) error

	Paused bool

	Log *barlog.Logger

	// SchedulerPeriod, PairingPeriod, PairingTimeout, SlaveConnectPeriod,
	// PausePeriod and MaintenancePeriod override the corresponding
	// default* constant when non-zero. cmd/bar wires the first four from
	// internal/config's scheduler-interval/pairing-interval/pairing-timeout/
	// slave-connect-interval keys; PausePeriod and MaintenancePeriod keep
	// their defaults there.
	SchedulerPeriod time.Duration
	PairingPeriod time.Duration
	PairingTimeout time.Duration
	SlaveConnectPeriod time.Duration
	PausePeriod time.Duration
	MaintenancePeriod time.Duration

	wg sync.WaitGroup
	cancel context.CancelFunc
}

// NewEngine returns an empty engine. Call Start to launch its background
// threads and a Watcher (see NewWatcher) to populate its job list from a
// directory.
func NewEngine(log *barlog.Logger) *Engine {
	if log == nil {
		log = barlog.New(barlog.LevelInfo, os.Stderr)
	}
	return &Engine{jobs: map[string]*JobNode{}, Slaves: slave.NewList(), Log: log}
}

// syncJobFile is called by a Watcher whenever it sees a job file that is
// new or has a newer mtime than the one on record. An active job's config
// is left untouched until it returns to an inactive state.
func (e *Engine) syncJobFile(path string, mtime time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, ok := e.jobs[path]
	if ok {
		if !mtime.After(node.FileMTime) {
			return
		}
		if node.Active() {
			e.Log.Warnf("job file changed while active, deferring reload: %s", path)
			return
		}
	}

	fresh, err := loadJobFile(path, mtime)
	if err != nil {
		e.Log.Errorf("failed to load job file %s: %v", path, err)
		return
	}
	e.jobs[path] = fresh
}

// removeMissing drops job nodes whose file is no longer present on disk,
// unless they currently have an active run.
func (e *Engine) removeMissing(seen map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for path, node := range e.jobs {
		if seen[path] {
			continue
		}
		if node.Active() {
			continue
		}
		delete(e.jobs, path)
	}
}

// Jobs returns a snapshot of the current job list.
func (e *Engine) Jobs() []*JobNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*JobNode, 0, len(e.jobs))
	for _, n := range e.jobs {
		out = append(out, n)
	}
	return out
}

// JobByUUID finds a job node by its config UUID.
func (e *Engine) JobByUUID(uuid string) *JobNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range e.jobs {
		if n.Config.UUID == uuid {
			return n
		}
	}
	return nil
}

// Start launches the engine's background cooperative threads. It returns
// immediately; Stop cancels and joins them.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.runEvery(ctx, orDefault(e.SchedulerPeriod, defaultSchedulerPeriod), e.schedulerTick)
	e.runEvery(ctx, orDefault(e.PairingPeriod, defaultPairingPeriod), e.pairingTick)
	e.runEvery(ctx, orDefault(e.SlaveConnectPeriod, defaultSlaveConnectPeriod), e.slaveConnectTick)
	e.runEvery(ctx, orDefault(e.PausePeriod, defaultPausePeriod), e.pauseTick)
	e.runEvery(ctx, orDefault(e.MaintenancePeriod, defaultMaintenancePeriod), e.maintenanceTick)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Stop cancels and joins every background thread.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) runEvery(ctx context.Context, period time.Duration, fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// schedulerTick evaluates every job's schedules against the current
// moment, triggering any whose schedule entry matches and whose interval
// has elapsed.
func (e *Engine) schedulerTick(ctx context.Context) {
	if e.isPaused() {
		return
	}
	now := time.Now()

	for _, node := range e.Jobs() {
		if node.Active() {
			continue
		}
		info, err := jobconfig.ReadSidecar(jobconfig.SidecarPath(node.FilePath))
		if err != nil {
			e.Log.Errorf("failed to read schedule sidecar for job %s: %v", node.Config.UUID, err)
			continue
		}
		for _, sched := range node.Config.Schedules {
			last := time.Time{}
			if ts := info.ByType[sched.ArchiveType]; ts != 0 {
				last = time.Unix(ts, 0)
			}
			if !schedule.ShouldTrigger(sched, last, now) {
				continue
			}
			if err := node.Trigger(sched.UUID, sched.CustomText, sched.ArchiveType, sched.NoStorage, false, "scheduler", now); err != nil {
				e.Log.Errorf("failed to trigger scheduled job %s: %v", node.Config.UUID, err)
				continue
			}
			e.dispatch(ctx, node)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, node *JobNode) {
	if e.Dispatcher == nil {
		return
	}
	if err := node.Start(); err != nil {
		e.Log.Errorf("failed to start job %s: %v", node.Config.UUID, err)
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := e.Dispatcher.Dispatch(ctx, node)
		node.End(err)
	}()
}

// pairingTick expires pairing handshakes: any slave entry that has sat in
// StateConnecting longer than the pairing timeout is disconnected (back to
// StateOffline). It sends no pairing requests itself.
func (e *Engine) pairingTick(ctx context.Context) {
	for _, entry := range e.Slaves.All() {
		if entry.State() != slave.StateConnecting {
			continue
		}
		if time.Since(entry.LastStateChange()) > orDefault(e.PairingTimeout, defaultPairingTimeout) {
			e.Log.Warnf("slave pairing timed out: %s", entry.Key())
			_ = entry.Disconnect(time.Second)
		}
	}
}

// slaveConnectTick attempts to (re)connect any offline paired slaves,
// backing off on repeated failure.
func (e *Engine) slaveConnectTick(ctx context.Context) {
	for _, entry := range e.Slaves.All() {
		if entry.State() == slave.StateOnline || entry.State() == slave.StateConnecting {
			continue
		}
		go func(entry *slave.Entry) {
			if err := entry.Connect(orDefault(e.SlaveConnectPeriod, defaultSlaveConnectPeriod)); err != nil {
				e.Log.Warnf("slave connect failed for %s: %v", entry.Key(), err)
			}
		}(entry)
	}
}

// pauseTick mirrors the engine's pause state into the log; pausing itself
// is driven externally via SetPaused.
func (e *Engine) pauseTick(ctx context.Context) {
	if e.isPaused() {
		e.Log.Debugf("engine paused")
	}
}

// maintenanceTick runs the slow (~10min) housekeeping jobs: catalog index
// update and retention purge.
func (e *Engine) maintenanceTick(ctx context.Context) {
	if e.IndexUpdate != nil {
		if err := e.IndexUpdate(ctx); err != nil {
			e.Log.Errorf("index update failed: %v", err)
		}
	}
	if e.PurgeExpired != nil {
		if err := e.PurgeExpired(ctx); err != nil {
			e.Log.Errorf("purge expired failed: %v", err)
		}
	}
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Paused
}

// SetPaused toggles whether the scheduler tick fires new triggers.
func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Paused = paused
}
