// ABOUTME: Per-namespace exclusive update locks
// ABOUTME: Serializes mutations within a namespace; namespaces never block each other

package collection

import "sync"

// Locks hands out one mutex per namespace. The zero value is ready to use.
// A single Locks must be shared by every collection bound to the same store.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocks creates an empty lock registry.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*sync.Mutex)}
}

// For returns the lock guarding namespace, creating it on first use.
func (l *Locks) For(namespace string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[namespace]
	if !ok {
		m = &sync.Mutex{}
		l.locks[namespace] = m
	}
	return m
}
