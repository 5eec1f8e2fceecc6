package registry

import "sync"

// idAllocator hands out session IDs. IDs grow monotonically and, after wrapping
// around, skip the ones still reserved. Zero is never returned.
type idAllocator struct {
	mu    sync.Mutex
	last  uint64
	inUse map[uint64]struct{}
}

func newIDAllocator() *idAllocator {
	return &idAllocator{inUse: make(map[uint64]struct{})}
}

func (a *idAllocator) acquire() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		a.last++
		if a.last == 0 {
			continue
		}
		if _, busy := a.inUse[a.last]; busy {
			continue
		}
		a.inUse[a.last] = struct{}{}
		return a.last
	}
}

func (a *idAllocator) release(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, id)
}

func (a *idAllocator) reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

// NewSessionID reserves and returns an unused session ID.
// It must be released with ReleaseSessionID once the session is gone.
func (m *Manager) NewSessionID() uint64 {
	return m.ids.acquire()
}

// ReleaseSessionID makes id available again. Releasing an unknown ID is a no-op.
func (m *Manager) ReleaseSessionID(id uint64) {
	m.ids.release(id)
}

// ReservedIDCount returns the number of session IDs currently reserved.
func (m *Manager) ReservedIDCount() int {
	return m.ids.reserved()
}
