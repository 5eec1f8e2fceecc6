package domain

import "time"

// Session is a handle to an execution context tracked by the registry.
// The registry never owns the underlying object: whoever created it is responsible
// for removing it and releasing its resources.
//
// Handles are compared by identity, so implementations must be pointer types.
type Session interface {
	ID() uint64
}

// Describer is implemented by sessions that can report an Info view of themselves.
type Describer interface {
	Describe() Info
}

// Killable is implemented by sessions that can be terminated by administrative code.
// Kill must be safe to call from any goroutine and more than once.
type Killable interface {
	Kill()
}

// Info is a point-in-time view of a session.
type Info struct {
	ID           uint64    `json:"id" yaml:"id"`
	User         string    `json:"user,omitempty" yaml:"user,omitempty"`
	Host         string    `json:"host,omitempty" yaml:"host,omitempty"`
	Command      string    `json:"command,omitempty" yaml:"command,omitempty"`
	State        string    `json:"state,omitempty" yaml:"state,omitempty"`
	Killed       bool      `json:"killed,omitempty" yaml:"killed,omitempty"`
	StartedAt    time.Time `json:"started_at,omitzero" yaml:"started_at,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitzero" yaml:"registered_at,omitempty"`
}

// Describe returns the Info of s, falling back to the bare ID when s is not a Describer.
func Describe(s Session) Info {
	if d, ok := s.(Describer); ok {
		return d.Describe()
	}
	return Info{ID: s.ID()}
}

// Stats is a point-in-time view of the registry counters.
// The fields are read independently and carry no ordering relationship to each other.
type Stats struct {
	Sessions       int    `json:"sessions"`
	ThreadsRunning int64  `json:"threads_running"`
	ThreadsCreated uint64 `json:"threads_created"`
	ReservedIDs    int    `json:"reserved_ids"`
}
