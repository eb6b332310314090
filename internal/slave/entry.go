package slave

import (
	"fmt"
	"sync"
	"time"
)

// State is a slave entry's coordination state, surfaced on its owning job
// while the connector is unusable.
type State int

const (
	StateOffline State = iota
	StateConnecting
	StateOnline
	StateDisconnected
	StateUnauthorized
)

// Entry is one paired slave host, keyed by (Name, Port). Its connector is
// reference-counted: Acquire increments lockCount and exposes the shared
// *Client; Release decrements it. Disconnect only succeeds at
// lockCount==0, waiting (up to a timeout) for in-flight users to Release.
type Entry struct {
	Name     string
	Port     int
	ForceTLS bool

	mu        sync.Mutex
	cond      *sync.Cond
	client    *Client
	lockCount int
	state     State
	lastOnline time.Time
	stateChangedAt time.Time
}

// NewEntry creates an unconnected slave entry for (name, port).
func NewEntry(name string, port int, forceTLS bool) *Entry {
	e := &Entry{Name: name, Port: port, ForceTLS: forceTLS, state: StateOffline}
	e.cond = sync.NewCond(&e.mu)
	e.stateChangedAt = time.Now()
	return e
}

// setState transitions the entry's state, stamping the transition time.
// Callers must hold e.mu.
func (e *Entry) setState(s State) {
	e.state = s
	e.stateChangedAt = time.Now()
}

// LastStateChange reports when the entry last transitioned state, used by
// the pairing thread to expire a stuck handshake.
func (e *Entry) LastStateChange() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateChangedAt
}

// BeginPairing marks the entry as mid-handshake; the pairing thread expires
// it back to StateOffline if it sits here past the pairing timeout.
func (e *Entry) BeginPairing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setState(StateConnecting)
}

// Key is the (name, port) identity a slave list indexes entries by.
func (e *Entry) Key() string {
	return fmt.Sprintf("%s:%d", e.Name, e.Port)
}

// Connect dials the slave (with backoff up to maxElapsed) and installs the
// resulting client, transitioning to StateOnline.
func (e *Entry) Connect(maxElapsed time.Duration) error {
	client, err := DialWithBackoff(e.Name, e.Port, e.ForceTLS, maxElapsed)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.setState(StateDisconnected)
		return err
	}
	e.client = client
	e.setState(StateOnline)
	e.lastOnline = time.Now()
	return nil
}

// Acquire locks the slave entry and increments lockCount, returning the
// shared client. Call Release when done. Acquire itself never blocks on
// other acquirers (the count is shared, not exclusive) — timeout bounds
// only the entry's own mutex contention with a concurrent Disconnect.
// A nil client indicates the slave is not currently connected.
func (e *Entry) Acquire(timeout time.Duration) (*Client, error) {
	if !e.lockWithTimeout(timeout) {
		return nil, fmt.Errorf("timeout acquiring slave %s", e.Key())
	}
	defer e.mu.Unlock()

	if e.state != StateOnline || e.client == nil {
		return nil, fmt.Errorf("disconnected: slave %s not connected", e.Key())
	}
	e.lockCount++
	return e.client, nil
}

// lockWithTimeout acquires e.mu, giving up after timeout (timeout<0 waits
// forever).
func (e *Entry) lockWithTimeout(timeout time.Duration) bool {
	if timeout < 0 {
		e.mu.Lock()
		return true
	}
	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		go func() { <-done; e.mu.Unlock() }()
		return false
	}
}

// Release decrements lockCount and wakes any waiter checking for drain to
// zero (e.g. Disconnect).
func (e *Entry) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lockCount > 0 {
		e.lockCount--
	}
	e.cond.Broadcast()
}

// Disconnect closes the underlying connection. Permitted only at
// lockCount==0; blocks up to timeout for in-flight users to Release.
func (e *Entry) Disconnect(timeout time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for e.lockCount > 0 {
		if timeout >= 0 && !waitUntil(e.cond, deadline) {
			return fmt.Errorf("timeout waiting to disconnect slave %s", e.Key())
		}
	}

	if e.client != nil {
		_ = e.client.Close()
		e.client = nil
	}
	e.setState(StateOffline)
	return nil
}

// State reports the entry's current coordination state.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func waitUntil(cond *sync.Cond, deadline time.Time) bool {
	done := make(chan struct{})
	timer := time.AfterFunc(time.Until(deadline), func() {
		cond.Broadcast()
		close(done)
	})
	defer timer.Stop()
	cond.Wait()
	select {
	case <-done:
		return !time.Now().After(deadline)
	default:
		return true
	}
}
