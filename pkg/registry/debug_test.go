//go:build !release

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoid_StablePerGoroutine(t *testing.T) {
	self := goid()
	assert.NotZero(t, self)
	assert.Equal(t, self, goid(), "same goroutine, same id")

	const n = 8
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = goid()
		}()
	}
	wg.Wait()

	seen := map[int64]bool{self: true}
	for _, id := range ids {
		assert.False(t, seen[id], "goroutine id %d seen twice", id)
		seen[id] = true
	}
}
