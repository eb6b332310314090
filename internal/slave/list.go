package slave

import (
	"fmt"
	"sync"
)

// List is the process-wide set of paired slave entries, guarded by its own
// lock.
type List struct {
	mu sync.RWMutex
	entries map[string]*Entry
}

// NewList returns an empty slave list.
func NewList() *List {
	return &List{entries: map[string]*Entry{}}
}

// GetOrCreate returns the entry for (name, port), creating it if absent.
func (l *List) GetOrCreate(name string, port int, forceTLS bool) *Entry {
	key := fmt.Sprintf("%s:%d", name, port)

	l.mu.RLock()
	if e, ok := l.entries[key]; ok {
		l.mu.RUnlock()
		return e
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		return e
	}
	e := NewEntry(name, port, forceTLS)
	l.entries[key] = e
	return e
}

// Get returns the entry for (name, port), or nil if it is not registered.
func (l *List) Get(name string, port int) *Entry {
	key := fmt.Sprintf("%s:%d", name, port)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[key]
}

// All returns a snapshot of every registered entry.
func (l *List) All() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}

// Remove drops a slave entry from the list. Callers should Disconnect it
// first (Disconnect itself enforces lockCount==0).
func (l *List) Remove(name string, port int) {
	key := fmt.Sprintf("%s:%d", name, port)
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}
