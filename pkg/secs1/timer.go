package secs1

import "time"

// Timer is a single-shot, stoppable/resettable timer wrapping time.Timer,
// grounded on original_source/include/secs/secs1/timer.hpp's Timer (which
// wraps asio::steady_timer behind arm/cancel). Callers read C() instead of
// touching a raw time.Timer field directly, which is what lets Clock swap
// in a fake for deadline tests.
type Timer struct {
	t *time.Timer
}

// C returns the channel the timer fires on.
func (tm *Timer) C() <-chan time.Time {
	return tm.t.C
}

// Reset rearms the timer for d, per time.Timer.Reset's semantics.
func (tm *Timer) Reset(d time.Duration) bool {
	return tm.t.Reset(d)
}

// Stop cancels the timer, per time.Timer.Stop's semantics.
func (tm *Timer) Stop() bool {
	return tm.t.Stop()
}

// Clock constructs Timers, an injectable seam so deadline-driven retry
// loops are testable without real wall-clock waits (spec.md §5.4).
type Clock interface {
	NewTimer(d time.Duration) *Timer
}

type systemClock struct{}

func (systemClock) NewTimer(d time.Duration) *Timer {
	return &Timer{t: time.NewTimer(d)}
}

// SystemClock is the production Clock, backed by the real wall clock.
var SystemClock Clock = systemClock{}

// Options configures the SECS-I link state machine's timers and retry
// budget (spec.md §4.3). Timer fields map 1:1 to T1-T4.
type Options struct {
	T1 time.Duration // inter-character timeout
	T2 time.Duration // protocol timeout (handshake and per-block ACK/NAK)
	T3 time.Duration // reply timeout (Transact)
	T4 time.Duration // inter-block timeout

	RetryLimit int // bounds handshake and per-block retries

	DeviceID   uint16 // expected device id for the Reassembler, if checked
	ReverseBit bool   // direction bit this side stamps on outgoing headers
}

// DefaultOptions returns spec.md's default timer values: T1=1s, T2=3s,
// T3=45s, T4=45s, RetryLimit=3.
func DefaultOptions() Options {
	return Options{
		T1:         time.Second,
		T2:         3 * time.Second,
		T3:         45 * time.Second,
		T4:         45 * time.Second,
		RetryLimit: 3,
	}
}
