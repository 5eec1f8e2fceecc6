//go:build release

package registry

// DebugAssertions reports whether lock ownership is tracked and asserted.
const DebugAssertions = false

func goid() int64 { return 0 }
