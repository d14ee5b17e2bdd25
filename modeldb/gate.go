package modeldb

import (
	"sync"
)

// reentrancyGate is a single-slot guard around document mutation sections.
// The change subscription that builds outgoing batches fires on the same call
// stack as the mutation itself; without the gate, a mutation started from
// inside a change callback would interleave with the section already in
// flight and tear the replica's causal history. Only coarse mutual exclusion
// is needed, no fairness and no queuing of arbitrary depth.
type reentrancyGate struct {
	mu   sync.Mutex
	busy bool
}

// Busy reports whether a mutation section is currently in flight.
func (g *reentrancyGate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Run executes primary if no section is in flight, restoring the slot on all
// exit paths including panics. When the gate is busy the fallback runs
// instead, if provided; otherwise the call is a no-op.
func (g *reentrancyGate) Run(primary func() error, fallback func()) error {
	g.mu.Lock()
	if g.busy {
		g.mu.Unlock()
		if fallback != nil {
			fallback()
		}
		return nil
	}
	g.busy = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.busy = false
		g.mu.Unlock()
	}()

	return primary()
}
