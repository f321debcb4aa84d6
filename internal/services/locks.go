package services

import "sync"

// InstanceLocks serializes work per route instance id. A location ping
// evaluating geofences and an absence recalculation must not mutate the
// same instance's stops concurrently; work on different instances
// proceeds in parallel. One registry is shared by every service that
// mutates instances.
type InstanceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewInstanceLocks() *InstanceLocks {
	return &InstanceLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for one instance id, creating it on first use.
// Lock entries are never evicted; the set of live route instances per
// process stays small.
func (l *InstanceLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
