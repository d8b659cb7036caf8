package protocol

import "context"

// backend is the narrow transport surface Session drives. Two
// implementations exist: hsmsBackend (full duplex, reader loop owned by
// the underlying hsms.Session) and secs1Backend (half duplex, no
// competing reader — request() drives its own bounded receive loop and
// routes any primaries it sees along the way).
type backend interface {
	// send transmits msg with WaitBit=false (W=0).
	send(ctx context.Context, msg DataMessage) error

	// request transmits msg (WaitBit=true) and returns the correlated
	// secondary. s is passed through so a half-duplex backend can route
	// primaries it observes while waiting to the session's router.
	request(ctx context.Context, s *Session, msg DataMessage) (DataMessage, error)

	// receive blocks for the next inbound message not already correlated
	// to a pending request, used by Session.Run / Session.PollOnce.
	receive(ctx context.Context) (DataMessage, error)

	// stop tears down the backend and cancels any in-flight waits.
	stop()
}
