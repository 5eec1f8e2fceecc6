package session

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/roster/pkg/domain"
)

// Session states reported through Describe.
const (
	StateIdle      = "idle"
	StateExecuting = "executing"
	StateKilled    = "killed"
)

// Session is the per-connection execution context.
type Session struct {
	id        uint64
	user      string
	host      string
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	command string
	state   string
}

// Ensure compliance with the registry capabilities.
var (
	_ domain.Session   = (*Session)(nil)
	_ domain.Describer = (*Session)(nil)
	_ domain.Killable  = (*Session)(nil)
)

// New creates an idle session. Its Context is derived from parent and is
// cancelled by Kill.
func New(parent context.Context, id uint64, user, host string) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:        id,
		user:      user,
		host:      host,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uint64 { return s.id }

// User returns the name the client identified with.
func (s *Session) User() string { return s.user }

// Host returns the remote address of the client.
func (s *Session) Host() string { return s.host }

// StartedAt returns the creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Context is cancelled when the session is killed.
func (s *Session) Context() context.Context { return s.ctx }

// Begin marks the session as executing command.
func (s *Session) Begin(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateKilled {
		return
	}
	s.command = command
	s.state = StateExecuting
}

// End marks the current command as finished.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateKilled {
		return
	}
	s.command = ""
	s.state = StateIdle
}

// Kill cancels the session context; idempotent.
func (s *Session) Kill() {
	s.mu.Lock()
	s.state = StateKilled
	s.mu.Unlock()
	s.cancel()
}

// Killed reports whether Kill was called.
func (s *Session) Killed() bool {
	return s.ctx.Err() != nil
}

// Describe returns a point-in-time view of the session.
func (s *Session) Describe() domain.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Info{
		ID:        s.id,
		User:      s.user,
		Host:      s.host,
		Command:   s.command,
		State:     s.state,
		Killed:    s.ctx.Err() != nil,
		StartedAt: s.startedAt,
	}
}
