package protocol

import (
	"context"

	"github.com/wolimst/secs-core/pkg/secs1"
)

// secs1Backend adapts a *secs1.StateMachine (half duplex: Send and
// Receive cannot run concurrently) to the backend interface. There is no
// independent reader loop; request() drives its own bounded receive loop
// and routes any primaries it observes to the session's router, per
// spec.md §4.6 "SECS-I (half duplex)".
type secs1Backend struct {
	sm         *secs1.StateMachine
	deviceID   uint16
	reverseBit bool
}

func newSECS1Backend(sm *secs1.StateMachine, deviceID uint16, reverseBit bool) *secs1Backend {
	return &secs1Backend{sm: sm, deviceID: deviceID, reverseBit: reverseBit}
}

func (b *secs1Backend) header(msg DataMessage) secs1.Header {
	return secs1.Header{
		ReverseBit:  b.reverseBit,
		DeviceID:    b.deviceID,
		WaitBit:     msg.WaitBit,
		Stream:      msg.Stream,
		Function:    msg.Function,
		EndBit:      true, // fragmentation lives inside the state machine
		BlockNumber: 1,
		SystemBytes: msg.SystemBytes,
	}
}

func (b *secs1Backend) send(ctx context.Context, msg DataMessage) error {
	return b.sm.Send(ctx, b.header(msg), msg.Body)
}

func toDataMessage(h secs1.Header, body []byte) DataMessage {
	return DataMessage{
		Stream:      h.Stream,
		Function:    h.Function,
		WaitBit:     h.WaitBit,
		SystemBytes: h.SystemBytes,
		Body:        body,
	}
}

// request sends msg then repeatedly receives until a secondary matching
// (msg.Stream, msg.Function+1, msg.SystemBytes) arrives, T3 elapses, or a
// receive error occurs. Primaries observed along the way are dispatched
// to s's router (which may synthesize and send a secondary) before the
// loop continues waiting (spec.md §4.6).
func (b *secs1Backend) request(ctx context.Context, s *Session, msg DataMessage) (DataMessage, error) {
	if err := b.send(ctx, msg); err != nil {
		return DataMessage{}, err
	}

	expectedFunction := msg.Function + 1
	for {
		h, body, err := b.sm.Receive(ctx)
		if err != nil {
			return DataMessage{}, err
		}
		reply := toDataMessage(h, body)

		if reply.IsSecondary() && !reply.WaitBit && reply.Stream == msg.Stream &&
			reply.Function == expectedFunction && reply.SystemBytes == msg.SystemBytes {
			return reply, nil
		}

		if reply.IsPrimary() {
			if err := s.handlePrimary(ctx, reply); err != nil {
				s.log.Warnf("protocol: handler error for S%dF%d: %v", reply.Stream, reply.Function, err)
			}
			continue
		}
		// Unrelated secondary (late reply to something else); discard.
	}
}

// receive performs a single bare receive, for Session.Run/PollOnce.
// Callers on SECS-I must not invoke Run concurrently with Request, since
// the underlying state machine forbids concurrent Send/Receive.
func (b *secs1Backend) receive(ctx context.Context) (DataMessage, error) {
	h, body, err := b.sm.Receive(ctx)
	if err != nil {
		return DataMessage{}, err
	}
	return toDataMessage(h, body), nil
}

// stop is a no-op: the state machine has no persistent background
// goroutine to tear down, and in-flight Send/Receive calls observe ctx
// cancellation from their own caller.
func (b *secs1Backend) stop() {}
