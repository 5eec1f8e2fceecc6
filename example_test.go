package roster_test

import (
	"context"
	"fmt"

	"github.com/aretw0/roster/pkg/domain"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/aretw0/roster/pkg/session"
)

// Example demonstrates the lifecycle of the process-wide registry and the two ways of
// looking at the live set.
func Example() {
	reg, err := registry.CreateInstance()
	if err != nil {
		fmt.Println("create:", err)
		return
	}

	ctx := context.Background()
	alice := session.New(ctx, reg.NewSessionID(), "alice", "10.0.0.1:5000")
	bob := session.New(ctx, reg.NewSessionID(), "bob", "10.0.0.2:5000")
	reg.AddSession(alice)
	reg.AddSession(bob)

	reg.ForEachSession(func(s domain.Session) {
		fmt.Println("live:", domain.Describe(s).User)
	})

	found := registry.GetInstance().FindSession(func(s domain.Session) bool {
		return domain.Describe(s).User == "bob"
	})
	fmt.Println("found:", found.ID())

	reg.RemoveSession(alice)
	reg.RemoveSession(bob)
	reg.ReleaseSessionID(alice.ID())
	reg.ReleaseSessionID(bob.ID())

	fmt.Println("destroy:", registry.DestroyInstance())

	// Output:
	// live: alice
	// live: bob
	// found: 2
	// destroy: <nil>
}
