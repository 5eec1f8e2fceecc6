package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/session"
	"github.com/stretchr/testify/assert"
)

func TestSession_Lifecycle(t *testing.T) {
	s := session.New(context.Background(), 7, "alice", "10.0.0.1:5000")

	info := s.Describe()
	assert.Equal(t, uint64(7), info.ID)
	assert.Equal(t, "alice", info.User)
	assert.Equal(t, "10.0.0.1:5000", info.Host)
	assert.Equal(t, session.StateIdle, info.State)
	assert.False(t, info.StartedAt.IsZero())

	s.Begin("SLEEP 10")
	info = s.Describe()
	assert.Equal(t, session.StateExecuting, info.State)
	assert.Equal(t, "SLEEP 10", info.Command)

	s.End()
	assert.Equal(t, session.StateIdle, s.Describe().State)
	assert.Empty(t, s.Describe().Command)
}

func TestSession_Kill(t *testing.T) {
	s := session.New(context.Background(), 1, "bob", "")
	s.Begin("PING")

	s.Kill()
	s.Kill()

	assert.True(t, s.Killed())
	assert.ErrorIs(t, s.Context().Err(), context.Canceled)
	info := s.Describe()
	assert.True(t, info.Killed)
	assert.Equal(t, session.StateKilled, info.State)

	// A killed session stays killed.
	s.End()
	s.Begin("PING")
	assert.Equal(t, session.StateKilled, s.Describe().State)
}

func TestSession_ParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := session.New(parent, 1, "", "")
	cancel()
	assert.True(t, s.Killed())
}

func TestSession_ConcurrentDescribe(t *testing.T) {
	s := session.New(context.Background(), 3, "carol", "")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Begin("COUNT")
				s.End()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = domain.Describe(s)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, session.StateIdle, s.Describe().State)
}
