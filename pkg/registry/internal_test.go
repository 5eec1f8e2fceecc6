package registry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type handle struct{ id uint64 }

func (h *handle) ID() uint64 { return h.id }

func TestIDAllocator_WrapSkipsReservedAndZero(t *testing.T) {
	a := newIDAllocator()
	a.last = math.MaxUint64 - 2

	assert.Equal(t, uint64(math.MaxUint64-1), a.acquire())
	assert.Equal(t, uint64(math.MaxUint64), a.acquire())

	// Pretend IDs 1 and 2 are still owned by long-lived sessions.
	a.inUse[1] = struct{}{}
	a.inUse[2] = struct{}{}

	assert.Equal(t, uint64(3), a.acquire(), "zero and reserved IDs are skipped after wrapping")
	assert.Equal(t, 5, a.reserved())

	a.release(2)
	a.release(42)
	assert.Equal(t, 4, a.reserved())
}

func TestIncThreadCreated_Saturates(t *testing.T) {
	m := New()
	m.created.Store(math.MaxUint64 - 1)

	m.IncThreadCreated()
	assert.Equal(t, uint64(math.MaxUint64), m.NumThreadCreated())
	m.IncThreadCreated()
	assert.Equal(t, uint64(math.MaxUint64), m.NumThreadCreated(), "created saturates instead of wrapping")
}

func TestInfos_RegisteredAtUsesClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := New(withClock(func() time.Time { return at }))
	m.AddSession(&handle{id: 9})

	infos := m.Infos(nil)
	if assert.Len(t, infos, 1) {
		assert.Equal(t, at, infos[0].RegisteredAt)
	}
}
