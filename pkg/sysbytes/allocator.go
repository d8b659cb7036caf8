// Package sysbytes allocates and tracks the 32-bit SystemBytes transaction
// identifiers that correlate a SECS-II primary with its secondary reply
// (spec.md §3 "System Bytes Allocator").
package sysbytes

import (
	"sync"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// Allocator is a process-scoped (in this design, session-scoped) 32-bit
// counter with a reuse-safe allocation scheme: a value already in flight
// is never handed out again until it is released.
type Allocator struct {
	mu       sync.Mutex
	seed     uint32
	limit    uint32 // highest representable value; production always ^uint32(0)
	next     uint32
	inFlight map[uint32]struct{}
}

// New creates an Allocator starting at seed, wrapping around the full
// 32-bit space. A seed of 0 defaults to 1, matching spec.md's "Starts at a
// seed (default 1)".
func New(seed uint32) *Allocator {
	return newBounded(seed, ^uint32(0))
}

// newBounded creates an Allocator whose usable value space is [seed,
// limit], to let tests exercise wraparound and full-exhaustion without
// performing billions of allocations.
func newBounded(seed, limit uint32) *Allocator {
	if seed == 0 {
		seed = 1
	}
	return &Allocator{
		seed:     seed,
		limit:    limit,
		next:     seed,
		inFlight: make(map[uint32]struct{}),
	}
}

// Allocate returns the next unused value, skipping values currently in
// flight, wrapping explicitly past math.MaxUint32 back to the seed. It
// fails with secserr.ErrBufferOverflow if every 32-bit value is currently
// in flight.
func (a *Allocator) Allocate() (uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.next
	for {
		candidate := a.next
		a.advance()
		if _, busy := a.inFlight[candidate]; !busy {
			a.inFlight[candidate] = struct{}{}
			return candidate, nil
		}
		if a.next == start {
			return 0, secserr.Wrap("sysbytes.Allocate", secserr.ErrBufferOverflow, nil)
		}
	}
}

// advance moves the cursor to the next candidate, wrapping to the seed
// after reaching limit rather than to 0.
func (a *Allocator) advance() {
	if a.next == a.limit {
		a.next = a.seed
		return
	}
	a.next++
}

// Release returns v to the pool, making it eligible for reuse.
func (a *Allocator) Release(v uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, v)
}

// InFlightCount reports how many values are currently allocated and not
// yet released.
func (a *Allocator) InFlightCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inFlight)
}
