package dbengine

import (
	"sync"
	"time"
)

// LockType is the three-state lock discipline a database node arbitrates:
// none, read (shared), or read-write (exclusive, owner-reentrant).
type LockType int

const (
	LockNone LockType = iota
	LockRead
	LockReadWrite
)

// TxType mirrors SQLite's transaction modes.
type TxType int

const (
	TxDeferred TxType = iota
	TxImmediate
	TxExclusive
)

func (t TxType) sql() string {
	switch t {
	case TxImmediate:
		return "BEGIN IMMEDIATE"
	case TxExclusive:
		return "BEGIN EXCLUSIVE"
	default:
		return "BEGIN DEFERRED"
	}
}

// Forever is the timeout sentinel meaning "wait indefinitely".
const Forever time.Duration = -1

// transactionDrain bounds how long BeginTx waits for in-flight readers to
// finish before issuing BEGIN.
const transactionDrain = 250 * time.Millisecond

// checkpointInterval is the minimum time between WAL checkpoints: a
// transaction that ends more than this long after the last checkpoint (or
// before any checkpoint) triggers one.
const checkpointInterval = 10 * time.Minute

// node is process-wide shared state for one underlying database file,
// keyed by path in the owning Registry. Every counter and the rw-holder
// are guarded by mu; waits use the three condition variables named after
// the original engine's readTrigger/readWriteTrigger/transactionTrigger.
type node struct {
	path string

	mu sync.Mutex

	readTrigger *sync.Cond
	readWriteTrigger *sync.Cond
	transactionTrigger *sync.Cond

	openCount int

	readCount int
	pendingReadCount int

	readWriteCount int
	pendingReadWriteCount int
	// rwHolder identifies the Handle currently holding the rw-lock, enabling
	// owner-reentrancy: a handle already holding rw may re-enter read or rw
	// sections on the same node without blocking on itself. The original C
	// engine keys this by OS thread id; goroutines have no stable identity,
	// so ownership is tracked per *Handle instead.
	rwHolder *Handle

	transactionCount int
	pendingTransactionCount int

	lastCheckpoint time.Time

	handlers *handlerLists
}

func newNode(path string) *node {
	n := &node{path: path, handlers: newHandlerLists()}
	n.readTrigger = sync.NewCond(&n.mu)
	n.readWriteTrigger = sync.NewCond(&n.mu)
	n.transactionTrigger = sync.NewCond(&n.mu)
	return n
}

// waitWithDeadline waits on cond until predicate() holds or deadline
// passes (a zero deadline means no timeout). Caller must hold cond.L.
// pending, if non-nil, is incremented for the duration of each Wait() call,
// tracking how many goroutines are blocked waiting for a read or RW slot.
func waitWithDeadline(cond *sync.Cond, deadline time.Time, pending *int, predicate func() bool) bool {
	if predicate() {
		return true
	}
	var timer *time.Timer
	if !deadline.IsZero() {
		timer = time.AfterFunc(time.Until(deadline), cond.Broadcast)
		defer timer.Stop()
	}
	for !predicate() {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return false
		}
		if pending != nil {
			*pending++
		}
		cond.Wait()
		if pending != nil {
			*pending--
		}
	}
	return true
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout == Forever {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

// acquireRead takes a shared read lock on the node.
func (n *node) acquireRead(owner *Handle, timeout time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	deadline := deadlineFor(timeout)
	ok := waitWithDeadline(n.readTrigger, deadline, &n.pendingReadCount, func() bool {
		return n.readWriteCount == 0 || n.rwHolder == owner
	})
	if !ok {
		return false
	}
	n.readCount++
	return true
}

// releaseRead releases a shared read lock on the node.
func (n *node) releaseRead() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.readCount--
	if n.transactionCount == 0 && n.pendingReadCount > 0 {
		n.readTrigger.Broadcast()
	} else if n.pendingReadWriteCount > 0 {
		n.readWriteTrigger.Broadcast()
	}
}

// acquireReadWrite takes the exclusive read-write lock on the node.
func (n *node) acquireReadWrite(owner *Handle, timeout time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	deadline := deadlineFor(timeout)
	ok := waitWithDeadline(n.readWriteTrigger, deadline, &n.pendingReadWriteCount, func() bool {
		return n.readWriteCount == 0 || n.rwHolder == owner
	})
	if !ok {
		return false
	}
	if n.readWriteCount == 0 {
		n.rwHolder = owner
	}
	n.readWriteCount++
	return true
}

// releaseReadWrite releases the exclusive read-write lock on the node.
func (n *node) releaseReadWrite() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.readWriteCount--
	if n.readWriteCount == 0 {
		n.rwHolder = nil
		if n.transactionCount == 0 {
			if n.pendingReadCount > 0 {
				n.readTrigger.Broadcast()
			} else if n.pendingReadWriteCount > 0 {
				n.readWriteTrigger.Broadcast()
			}
		} else if n.pendingReadWriteCount > 0 {
			n.readWriteTrigger.Broadcast()
		}
	}
}

// beginTransaction holds the rw-lock for the
// duration of the transaction, with a brief drain phase letting in-flight
// readers complete before BEGIN. At most one transaction per node.
func (n *node) beginTransaction(owner *Handle, timeout time.Duration) bool {
	if !n.acquireReadWrite(owner, timeout) {
		return false
	}

	n.mu.Lock()
	drainDeadline := time.Now().Add(transactionDrain)
	for n.readCount > 0 && time.Now().Before(drainDeadline) {
		n.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		n.mu.Lock()
	}
	n.transactionCount = 1
	n.mu.Unlock()
	return true
}

func (n *node) endTransaction() {
	n.mu.Lock()
	n.transactionCount = 0
	n.transactionTrigger.Broadcast()
	n.mu.Unlock()
	n.releaseReadWrite()
}

// shouldCheckpoint reports whether a WAL checkpoint is due.
func (n *node) shouldCheckpoint(now time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastCheckpoint.IsZero() || now.Sub(n.lastCheckpoint) > checkpointInterval
}

func (n *node) markCheckpointed(at time.Time) {
	n.mu.Lock()
	n.lastCheckpoint = at
	n.mu.Unlock()
}

// counters is a debug/test snapshot of the node's lock state.
type counters struct {
	ReadCount, PendingReadCount int
	ReadWriteCount, PendingReadWriteCount int
	TransactionCount, PendingTransactionCount int
}

func (n *node) snapshot() counters {
	n.mu.Lock()
	defer n.mu.Unlock()
	return counters{
		ReadCount: n.readCount,
		PendingReadCount: n.pendingReadCount,
		ReadWriteCount: n.readWriteCount,
		PendingReadWriteCount: n.pendingReadWriteCount,
		TransactionCount: n.transactionCount,
		PendingTransactionCount: n.pendingTransactionCount,
	}
}
