// Package event implements a single-producer, multi-waiter manual-reset
// signal with explicit timeout and cancellation outcomes.
//
// Unlike a plain channel close, an Event distinguishes three terminal
// states a waiter can observe: Set, Cancelled, and (if the caller's
// context expires first) timed out. Both Set and Cancel are broadcast to
// every waiter, current and future, via closed channels; Reset swaps in
// fresh channels (and bumps a generation counter) to start a new round,
// while waiters from the previous round keep the old channels.
package event

import (
	"context"
	"sync"

	"github.com/wolimst/secs-core/pkg/secserr"
)

// Event is a manual-reset signal. The zero value is ready to use.
type Event struct {
	mu         sync.Mutex
	generation uint64
	setCh      chan struct{}
	cancelCh   chan struct{}
	isSet      bool
}

// New creates a ready-to-use Event in the unset state.
func New() *Event {
	return &Event{
		setCh:    make(chan struct{}),
		cancelCh: make(chan struct{}),
	}
}

// Set wakes every current and future waiter of the current generation with
// a successful outcome. Set is a no-op if the event was already set or
// cancelled in this generation.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.setCh:
	case <-e.cancelCh:
	default:
		e.isSet = true
		close(e.setCh)
	}
}

// Cancel wakes every current and future waiter of the current generation
// with secserr.ErrCancelled. Cancel is a no-op if the event was already set
// or cancelled in this generation.
func (e *Event) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.setCh:
	case <-e.cancelCh:
	default:
		close(e.cancelCh)
	}
}

// Reset clears Set/Cancel and starts a new generation. Callers must ensure
// no goroutine is still waiting on the prior generation when calling
// Reset, since those waiters never observe this generation's outcomes.
func (e *Event) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.isSet = false
	e.setCh = make(chan struct{})
	e.cancelCh = make(chan struct{})
}

// IsSet reports whether Set has fired in the current generation.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSet
}

// Wait blocks until Set, Cancel, or ctx expires, whichever happens first.
// It returns nil on Set, secserr.ErrCancelled on Cancel, and
// secserr.ErrTimeout if ctx is done first.
func (e *Event) Wait(ctx context.Context) error {
	e.mu.Lock()
	setCh, cancelCh := e.setCh, e.cancelCh
	e.mu.Unlock()

	select {
	case <-setCh:
		return nil
	case <-cancelCh:
		return secserr.ErrCancelled
	case <-ctx.Done():
		select {
		case <-setCh:
			return nil
		case <-cancelCh:
			return secserr.ErrCancelled
		default:
			return secserr.ErrTimeout
		}
	}
}
