//go:build !release

package registry_test

import (
	"testing"
	"time"

	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	notOwnerMsg     = "assertion failed: registry lock is not held by the calling goroutine"
	alreadyOwnerMsg = "assertion failed: registry lock is already held by the calling goroutine"
)

func TestManager_AssertOwner(t *testing.T) {
	require.True(t, registry.DebugAssertions)
	m := registry.New()

	// Should not assert as the lock is not acquired.
	assert.NotPanics(t, m.AssertNotOwner)
	m.AcquireLock()
	assert.NotPanics(t, m.AssertOwner)
	m.ReleaseLock()
	assert.NotPanics(t, m.AssertNotOwner)
}

func TestManager_AssertDeath(t *testing.T) {
	m := registry.New()

	m.AcquireLock()
	assert.PanicsWithValue(t, alreadyOwnerMsg, m.AssertNotOwner)
	m.ReleaseLock()
	assert.PanicsWithValue(t, notOwnerMsg, m.AssertOwner)
	assert.PanicsWithValue(t, notOwnerMsg, m.ReleaseLock, "releasing a lock you do not hold")
}

func TestManager_OwnershipIsPerGoroutine(t *testing.T) {
	m := registry.New()
	m.AcquireLock()

	result := make(chan any, 1)
	go func() {
		defer func() { result <- recover() }()
		m.AssertOwner()
	}()
	assert.Equal(t, notOwnerMsg, <-result, "another goroutine does not own the lock")

	m.ReleaseLock()
}

func TestManager_LockedVisitorMustNotReenter(t *testing.T) {
	m := registry.New()
	m.AddSession(&fakeSession{id: 1})

	assert.PanicsWithValue(t, alreadyOwnerMsg, func() {
		m.ForEachSession(func(s domain.Session) {
			m.RemoveSession(s)
		})
	})
	assert.PanicsWithValue(t, alreadyOwnerMsg, func() {
		m.FindSession(func(s domain.Session) bool {
			m.AddSession(&fakeSession{id: 2})
			return false
		})
	})

	// The panics unwound through the registry and released its lock.
	assert.Equal(t, 1, m.SessionCount())
	assert.True(t, m.AddSession(&fakeSession{id: 3}))
}

func TestManager_AcquireLockExcludesMembershipChanges(t *testing.T) {
	m := registry.New()
	m.AcquireLock()

	added := make(chan struct{})
	go func() {
		m.AddSession(&fakeSession{id: 1})
		close(added)
	}()

	select {
	case <-added:
		t.Fatal("AddSession completed while the lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	m.AssertOwner()
	assert.Equal(t, 0, m.SessionCount())
	m.ReleaseLock()

	select {
	case <-added:
	case <-time.After(5 * time.Second):
		t.Fatal("AddSession did not proceed after ReleaseLock")
	}
	assert.Equal(t, 1, m.SessionCount())
}
