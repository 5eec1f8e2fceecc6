/*
Package registry implements the process-wide session registry.

The registry tracks every live session of the server, serializes membership changes
behind a single lock and offers guarded enumeration and search over the live set. It
also keeps two server-wide worker counters (running and created) that are independent
of membership and never block.

# Locking

All membership operations take the registry lock. ForEachSession and FindSession hold it
for the whole pass, so their callbacks must not call back into membership operations.
ForEachSessionSnapshot copies the set under the lock and visits the copy unlocked, which
allows re-entrant callbacks at the cost of possibly visiting a session that has been
removed in the meantime.

AcquireLock and ReleaseLock expose the lock for callers that need a broader atomic
region. AssertOwner and AssertNotOwner check lock discipline at the call site.

# Debug assertions

By default the lock records its owning goroutine and the assertions panic on violation.
Building with the "release" tag compiles ownership tracking and the checks to no-ops;
DebugAssertions reports which mode is active.

# Lifecycle

A process normally has exactly one registry, created with CreateInstance, reached through
GetInstance and torn down with DestroyInstance once every owner has removed its sessions.
New builds an independent Manager for embedding and tests.
*/
package registry
