package indexer

import "sync"

// RootLocks provides non-blocking, per-module-root lock semantics so two index
// runs never write the same module concurrently. The zero value is ready to use.
type RootLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// TryAcquire attempts to lock root without blocking.
// Returns true if the lock was acquired, false if another run holds it.
func (l *RootLocks) TryAcquire(root string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held == nil {
		l.held = make(map[string]struct{})
	}
	if _, busy := l.held[root]; busy {
		return false
	}
	l.held[root] = struct{}{}
	return true
}

// Release unlocks root.
// Must only be called by the run that acquired it.
func (l *RootLocks) Release(root string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, root)
}

// Held reports whether root is currently locked
func (l *RootLocks) Held(root string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[root]
	return busy
}
