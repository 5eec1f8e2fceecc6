/*
Package roster tracks the live sessions of a multi-goroutine server.

At its heart is a process-wide session registry (package registry) that owns the
bookkeeping of "which sessions currently exist" plus a few server-wide counters. It is
not a scheduler and not a connection pool: sessions are created, owned and released by
the code that accepted the client, and the registry only holds non-owning handles to
them for as long as they are live.

# Concept

Session owners register a handle when a session starts and remove it when it ends.
Administrative and monitoring code enumerates the live set with a visitor, or searches it
with a predicate, without ever taking ownership of the sessions it sees.

# Key Features

  - Single-lock membership set with insertion-ordered enumeration.
  - Locked and snapshot enumeration, the latter safe for re-entrant visitors.
  - Predicate search that scans the whole set and returns the last match.
  - Lock-free worker counters (running and created).
  - Lock-ownership assertions, compiled out with the "release" build tag.

# Usage

	reg, err := registry.CreateInstance()
	if err != nil {
		log.Fatal(err)
	}
	defer registry.DestroyInstance()

	s := session.New(ctx, reg.NewSessionID(), "alice", "10.0.0.1:5000")
	reg.AddSession(s)
	defer reg.RemoveSession(s)

	reg.ForEachSessionSnapshot(func(s domain.Session) {
		fmt.Println(domain.Describe(s).User)
	})

# Adapters

The module ships the collaborators that a server around the registry needs: a TCP
acceptor that owns sessions (package acceptor), an administrative HTTP API, an MCP tool
surface and a Redis presence mirror (packages under adapters), a Prometheus collector
(package observability) and the roster command.
*/
package roster
