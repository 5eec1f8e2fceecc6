package registry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/roster/internal/logging"
	"github.com/aretw0/roster/pkg/domain"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Visitor is invoked once per live session during enumeration.
type Visitor func(s domain.Session)

// Predicate is invoked once per live session during search.
type Predicate func(s domain.Session) bool

// Manager tracks the live sessions of a server and its worker counters.
// It is safe for concurrent use.
type Manager struct {
	lock ownedMutex // guards sessions and drained

	// sessions keeps insertion order; the value is the registration time.
	sessions *orderedmap.OrderedMap[domain.Session, time.Time]
	count    atomic.Int64  // mirrors sessions.Len(), written under lock
	drained  chan struct{} // closed while sessions is empty

	running atomic.Int64
	created atomic.Uint64
	queryID atomic.Uint64
	ids     *idAllocator

	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for membership events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// withClock overrides the registration clock in tests.
func withClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates an empty Manager. Most servers use CreateInstance instead.
func New(opts ...Option) *Manager {
	drained := make(chan struct{})
	close(drained)

	m := &Manager{
		sessions: orderedmap.New[domain.Session, time.Time](),
		drained:  drained,
		ids:      newIDAllocator(),
		logger:   logging.NewNop(), // Default to no-op
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddSession registers s. It returns false, leaving the set untouched, when s is nil
// or already registered. Once AddSession returns, s is visible to every subsequent
// enumeration and search from any goroutine.
func (m *Manager) AddSession(s domain.Session) bool {
	if s == nil {
		return false
	}
	m.AssertNotOwner()
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, present := m.sessions.Get(s); present {
		m.logger.Debug("Session already registered", "session_id", s.ID())
		return false
	}
	m.sessions.Set(s, m.now())
	if m.count.Add(1) == 1 {
		m.drained = make(chan struct{})
	}
	m.logger.Debug("Session registered", "session_id", s.ID())
	return true
}

// RemoveSession unregisters s. It returns false when s was not registered.
// The registry never releases the session itself; that stays with its owner.
func (m *Manager) RemoveSession(s domain.Session) bool {
	if s == nil {
		return false
	}
	m.AssertNotOwner()
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, present := m.sessions.Delete(s); !present {
		return false
	}
	if m.count.Add(-1) == 0 {
		close(m.drained)
	}
	m.logger.Debug("Session unregistered", "session_id", s.ID())
	return true
}

// SessionCount returns the number of registered sessions. It never blocks.
func (m *Manager) SessionCount() int {
	return int(m.count.Load())
}

// ForEachSession calls v for every registered session, in registration order,
// while holding the registry lock. No session can be added or removed during the
// pass, so v observes a consistent set. v must not call back into membership,
// enumeration or search operations.
func (m *Manager) ForEachSession(v Visitor) {
	m.AssertNotOwner()
	m.lock.Lock()
	defer m.lock.Unlock()

	for pair := m.sessions.Oldest(); pair != nil; pair = pair.Next() {
		v(pair.Key)
	}
}

// ForEachSessionSnapshot copies the registered sessions under the lock and then
// calls v for each of them without holding it. v may add or remove sessions.
// A session removed after the copy was taken is still visited.
func (m *Manager) ForEachSessionSnapshot(v Visitor) {
	for _, e := range m.snapshot() {
		v(e.session)
	}
}

// FindSession evaluates p against every registered session, in registration order,
// while holding the registry lock, and returns the last session p matched.
// It returns nil when nothing matches. The whole set is always scanned.
func (m *Manager) FindSession(p Predicate) domain.Session {
	m.AssertNotOwner()
	m.lock.Lock()
	defer m.lock.Unlock()

	var found domain.Session
	for pair := m.sessions.Oldest(); pair != nil; pair = pair.Next() {
		if p(pair.Key) {
			found = pair.Key
		}
	}
	return found
}

// FindSessionByID returns the last registered session whose ID is id, or nil.
func (m *Manager) FindSessionByID(id uint64) domain.Session {
	return m.FindSession(func(s domain.Session) bool {
		return s.ID() == id
	})
}

// Infos returns a view of every registered session accepted by keep (all of them
// when keep is nil). Sessions are described outside the registry lock.
func (m *Manager) Infos(keep Predicate) []domain.Info {
	entries := m.snapshot()
	infos := make([]domain.Info, 0, len(entries))
	for _, e := range entries {
		if keep != nil && !keep(e.session) {
			continue
		}
		info := domain.Describe(e.session)
		info.RegisteredAt = e.registeredAt
		infos = append(infos, info)
	}
	return infos
}

// WaitUntilEmpty blocks until no session is registered or ctx is done.
func (m *Manager) WaitUntilEmpty(ctx context.Context) error {
	m.AssertNotOwner()
	m.lock.Lock()
	drained := m.drained
	m.lock.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (m *Manager) Stats() domain.Stats {
	return domain.Stats{
		Sessions:       m.SessionCount(),
		ThreadsRunning: m.NumThreadRunning(),
		ThreadsCreated: m.NumThreadCreated(),
		ReservedIDs:    m.ReservedIDCount(),
	}
}

type entry struct {
	session      domain.Session
	registeredAt time.Time
}

func (m *Manager) snapshot() []entry {
	m.AssertNotOwner()
	m.lock.Lock()
	defer m.lock.Unlock()

	entries := make([]entry, 0, m.sessions.Len())
	for pair := m.sessions.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, entry{session: pair.Key, registeredAt: pair.Value})
	}
	return entries
}
