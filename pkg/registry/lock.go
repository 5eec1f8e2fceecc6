package registry

import (
	"sync"
	"sync/atomic"
)

// ownedMutex is the registry lock. In debug builds it remembers which goroutine
// holds it so that AssertOwner and AssertNotOwner can be answered.
type ownedMutex struct {
	mu    sync.Mutex
	owner atomic.Int64 // goroutine id of the holder, 0 when free
}

func (m *ownedMutex) Lock() {
	m.mu.Lock()
	if DebugAssertions {
		m.owner.Store(goid())
	}
}

func (m *ownedMutex) Unlock() {
	if DebugAssertions {
		m.owner.Store(0)
	}
	m.mu.Unlock()
}

// heldByCaller is only meaningful in debug builds.
func (m *ownedMutex) heldByCaller() bool {
	return m.owner.Load() == goid()
}

// AcquireLock takes the registry lock on behalf of the caller. It must be paired
// with ReleaseLock on the same goroutine. While it is held, the caller must not use
// any locking registry operation.
func (m *Manager) AcquireLock() {
	m.AssertNotOwner()
	m.lock.Lock()
}

// ReleaseLock releases a lock taken with AcquireLock.
func (m *Manager) ReleaseLock() {
	m.AssertOwner()
	m.lock.Unlock()
}

// AssertOwner panics if the calling goroutine does not hold the registry lock.
// It is a no-op in release builds.
func (m *Manager) AssertOwner() {
	if DebugAssertions && !m.lock.heldByCaller() {
		panic("assertion failed: registry lock is not held by the calling goroutine")
	}
}

// AssertNotOwner panics if the calling goroutine holds the registry lock.
// It is a no-op in release builds.
func (m *Manager) AssertNotOwner() {
	if DebugAssertions && m.lock.heldByCaller() {
		panic("assertion failed: registry lock is already held by the calling goroutine")
	}
}
