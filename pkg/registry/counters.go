package registry

import "math"

// IncThreadRunning records that one more worker is executing session work.
func (m *Manager) IncThreadRunning() {
	m.running.Add(1)
}

// DecThreadRunning records that a worker finished executing session work.
// Calls must be balanced with IncThreadRunning; no lower bound is enforced.
func (m *Manager) DecThreadRunning() {
	m.running.Add(-1)
}

// NumThreadRunning returns the number of workers currently executing session work.
func (m *Manager) NumThreadRunning() int64 {
	return m.running.Load()
}

// IncThreadCreated records that a worker was created. The counter never decreases
// and saturates at math.MaxUint64.
func (m *Manager) IncThreadCreated() {
	for {
		n := m.created.Load()
		if n == math.MaxUint64 {
			return
		}
		if m.created.CompareAndSwap(n, n+1) {
			return
		}
	}
}

// NumThreadCreated returns the number of workers created so far.
func (m *Manager) NumThreadCreated() uint64 {
	return m.created.Load()
}

// NextQueryID returns a new server-wide query identifier, starting at 1.
func (m *Manager) NextQueryID() uint64 {
	return m.queryID.Add(1)
}
