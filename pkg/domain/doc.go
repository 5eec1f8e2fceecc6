/*
Package domain contains the core types shared by the registry and its adapters.

It defines what the registry needs to know about an execution context (a session) and
the read-only views that monitoring code builds from it. This package is kept pure and
free of I/O, following the same hexagonal split used by the rest of the module.

# Key Entities

  - Session: an opaque, externally owned handle compared by identity.
  - Describer / Killable: optional capabilities discovered by type assertion.
  - Info: a point-in-time, JSON friendly view of one session.
  - Stats: a point-in-time view of the registry counters.
*/
package domain
