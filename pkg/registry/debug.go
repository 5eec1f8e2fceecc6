//go:build !release

package registry

import goroutine "github.com/petermattis/goid"

// DebugAssertions reports whether lock ownership is tracked and asserted.
// Production builds should use -tags release, which turns the checks into no-ops.
const DebugAssertions = true

// goid returns the ID of the calling goroutine.
func goid() int64 {
	return goroutine.Get()
}
