package main

import (
	"context"
	"sync"

	"github.com/torvald-bar/bargo/internal/catalog"
	"github.com/torvald-bar/bargo/internal/jobengine"
)

// cmdContext returns the base context one-shot commands run under. Commands
// that need cancellation (the daemon) build their own from signal.NotifyContext
// instead.
func cmdContext() context.Context {
	return context.Background()
}

// runtimeContext consolidates the pieces of long-lived state a command may
// need to open: the job engine (job list, schedules, slaves) and the
// catalog index, both lazily opened and closed by the owning command.
type runtimeContext struct {
	mu sync.Mutex

	engine  *jobengine.Engine
	watcher *jobengine.Watcher
	index   *catalog.Index
}

var rtCtx = &runtimeContext{}

// openCatalog opens the configured catalog database, memoizing the handle
// for the lifetime of the process.
func (r *runtimeContext) openCatalog(path string) (*catalog.Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index != nil {
		return r.index, nil
	}
	idx, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	r.index = idx
	return idx, nil
}

// closeAll releases any resources the runtime context has opened. Safe to
// call even if nothing was ever opened.
func (r *runtimeContext) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	if r.engine != nil {
		r.engine.Stop()
	}
	if r.index != nil {
		_ = r.index.Close()
	}
}
