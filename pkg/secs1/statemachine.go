package secs1

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wolimst/secs-core/pkg/secserr"
)

// State is the SECS-I link's current half-duplex phase (spec.md §4.3).
type State uint8

const (
	StateIdle State = iota
	StateWaitEOT
	StateWaitBlock
	StateWaitCheck
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitEOT:
		return "wait_eot"
	case StateWaitBlock:
		return "wait_block"
	case StateWaitCheck:
		return "wait_check"
	default:
		return "unknown"
	}
}

// StateMachine drives the SECS-I ENQ/EOT/ACK/NAK handshake over a
// LinkPort. It is half-duplex: Send and Receive must be externally
// serialized by the caller (protocol.Session does not serialize them
// either); a second call while busy returns ErrInvalidArgument without
// touching the link.
type StateMachine struct {
	port  LinkPort
	opts  Options
	log   *logrus.Logger
	clock Clock

	mu    sync.Mutex
	state State
}

// New creates a StateMachine over port with the given options. A nil
// logger defaults to logrus.StandardLogger().
func New(port LinkPort, opts Options, logger *logrus.Logger) *StateMachine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StateMachine{port: port, opts: opts, log: logger, clock: SystemClock}
}

// SetClock overrides the Clock used for deadline timers, for tests that
// need to control time without real waits. Must be called before the
// state machine is used concurrently.
func (sm *StateMachine) SetClock(clock Clock) {
	sm.clock = clock
}

// State reports the state machine's current phase.
func (sm *StateMachine) State() State {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

func (sm *StateMachine) acquire(s State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state != StateIdle {
		return secserr.Wrap("secs1.StateMachine", secserr.ErrInvalidArgument, fmt.Errorf("busy in state %s", sm.state))
	}
	sm.state = s
	return nil
}

func (sm *StateMachine) setState(s State) {
	sm.mu.Lock()
	sm.state = s
	sm.mu.Unlock()
}

func (sm *StateMachine) release() {
	sm.mu.Lock()
	sm.state = StateIdle
	sm.mu.Unlock()
}

// Send fragments payload under base and drives the ENQ handshake followed
// by one block transmission per fragment, retrying per spec.md §4.3.
func (sm *StateMachine) Send(ctx context.Context, base Header, payload []byte) error {
	if err := sm.acquire(StateWaitEOT); err != nil {
		return err
	}
	defer sm.release()

	base.ReverseBit = sm.opts.ReverseBit
	blocks, err := FragmentMessage(base, payload)
	if err != nil {
		return err
	}

	if err := sm.handshake(ctx); err != nil {
		return err
	}

	sm.setState(StateWaitBlock)
	for i, frame := range blocks {
		if err := sm.sendBlock(ctx, frame); err != nil {
			return fmt.Errorf("block %d/%d: %w", i+1, len(blocks), err)
		}
	}
	return nil
}

func (sm *StateMachine) handshake(ctx context.Context) error {
	for attempt := 0; attempt <= sm.opts.RetryLimit; attempt++ {
		if err := sm.port.WriteByte(ctx, ENQ); err != nil {
			return err
		}
		b, err := sm.readByteDeadline(ctx, sm.opts.T2)
		if err != nil {
			if errors.Is(err, secserr.ErrTimeout) {
				continue
			}
			return err
		}
		switch b {
		case EOT, ACK:
			return nil
		case NAK:
			continue
		default:
			return secserr.Wrap("secs1.handshake", secserr.ErrProtocolError, fmt.Errorf("unexpected byte 0x%02x", b))
		}
	}
	return secserr.Wrap("secs1.handshake", secserr.ErrTooManyRetries, nil)
}

func (sm *StateMachine) sendBlock(ctx context.Context, frame []byte) error {
	for attempt := 0; attempt <= sm.opts.RetryLimit; attempt++ {
		if err := sm.port.Write(ctx, frame); err != nil {
			return err
		}
		b, err := sm.readByteDeadline(ctx, sm.opts.T2)
		if err != nil {
			if errors.Is(err, secserr.ErrTimeout) {
				continue
			}
			return err
		}
		switch b {
		case ACK:
			return nil
		case NAK:
			continue
		default:
			return secserr.Wrap("secs1.sendBlock", secserr.ErrProtocolError, fmt.Errorf("unexpected byte 0x%02x", b))
		}
	}
	return secserr.Wrap("secs1.sendBlock", secserr.ErrTooManyRetries, nil)
}

// Receive drives the receiver side: wait for ENQ, reply EOT, then read
// blocks (with per-block retry on checksum/format failure) until one with
// EndBit=1 is accepted.
func (sm *StateMachine) Receive(ctx context.Context) (Header, []byte, error) {
	if err := sm.acquire(StateWaitBlock); err != nil {
		return Header{}, nil, err
	}
	defer sm.release()

	if err := sm.waitForENQ(ctx); err != nil {
		return Header{}, nil, err
	}
	if err := sm.port.WriteByte(ctx, EOT); err != nil {
		return Header{}, nil, err
	}

	var expectedDeviceID *uint16
	if sm.opts.DeviceID != 0 {
		d := sm.opts.DeviceID
		expectedDeviceID = &d
	}
	reassembler := NewReassembler(expectedDeviceID)

	blockDeadline := sm.opts.T2
	for !reassembler.HasMessage() {
		h, data, err := sm.receiveOneBlock(ctx, blockDeadline)
		if err != nil {
			return Header{}, nil, err
		}
		blockDeadline = sm.opts.T4

		if err := reassembler.Accept(h, data); err != nil {
			_ = sm.port.WriteByte(ctx, NAK)
			return Header{}, nil, err
		}
		if err := sm.port.WriteByte(ctx, ACK); err != nil {
			return Header{}, nil, err
		}
	}
	h, body := reassembler.Message()
	return h, body, nil
}

// receiveOneBlock reads a single Length+Header+Data+Checksum frame,
// retrying on checksum or frame-format failure up to RetryLimit. The
// first read (the Length byte) uses lengthDeadline (T2 for the first
// block of a message, T4 afterwards); Header/Data/Checksum bytes are each
// read with deadline T1.
func (sm *StateMachine) receiveOneBlock(ctx context.Context, lengthDeadline time.Duration) (Header, []byte, error) {
	for attempt := 0; attempt <= sm.opts.RetryLimit; attempt++ {
		lengthByte, err := sm.readByteDeadline(ctx, lengthDeadline)
		if err != nil {
			return Header{}, nil, err
		}
		length := int(lengthByte)
		if length < 10 || length > 254 {
			if nakErr := sm.port.WriteByte(ctx, NAK); nakErr != nil {
				return Header{}, nil, nakErr
			}
			continue
		}

		frame := make([]byte, 1+length+2)
		frame[0] = lengthByte
		for i := 1; i < len(frame); i++ {
			b, err := sm.readByteDeadline(ctx, sm.opts.T1)
			if err != nil {
				return Header{}, nil, err
			}
			frame[i] = b
		}

		h, data, err := DecodeBlock(frame)
		if err != nil {
			if nakErr := sm.port.WriteByte(ctx, NAK); nakErr != nil {
				return Header{}, nil, nakErr
			}
			continue
		}
		return h, append([]byte(nil), data...), nil
	}
	return Header{}, nil, secserr.Wrap("secs1.receiveOneBlock", secserr.ErrTooManyRetries, nil)
}

func (sm *StateMachine) waitForENQ(ctx context.Context) error {
	for {
		b, err := sm.port.ReadByte(ctx)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return secserr.Wrap("secs1.waitForENQ", secserr.ErrTimeout, err)
			}
			if ctx.Err() != nil {
				return secserr.Wrap("secs1.waitForENQ", secserr.ErrCancelled, err)
			}
			return err
		}
		if b == ENQ {
			return nil
		}
	}
}

// Transact sends a message then waits for its reply, bounded by T3 for
// the entire receive (spec.md §4.3 "send then receive with deadline T3
// for the first byte of the reply").
func (sm *StateMachine) Transact(ctx context.Context, base Header, payload []byte) (Header, []byte, error) {
	if err := sm.Send(ctx, base, payload); err != nil {
		return Header{}, nil, err
	}
	replyCtx, cancel := context.WithTimeout(ctx, sm.opts.T3)
	defer cancel()
	return sm.Receive(replyCtx)
}

// readByteDeadline reads one byte bounded by d, armed fresh on every call
// so each byte of a block gets its own inter-character deadline (spec.md
// §4.3 step 4) rather than one deadline spanning several bytes. The
// deadline is driven by sm.clock rather than context.WithTimeout directly
// so it can be faked in tests.
func (sm *StateMachine) readByteDeadline(ctx context.Context, d time.Duration) (byte, error) {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := sm.clock.NewTimer(d)
	defer timer.Stop()

	timedOut := make(chan struct{})
	go func() {
		select {
		case <-timer.C():
			close(timedOut)
			cancel()
		case <-dctx.Done():
		}
	}()

	b, err := sm.port.ReadByte(dctx)
	if err != nil {
		select {
		case <-timedOut:
			return 0, secserr.Wrap("secs1.readByte", secserr.ErrTimeout, err)
		default:
		}
		if ctx.Err() != nil {
			return 0, secserr.Wrap("secs1.readByte", secserr.ErrCancelled, err)
		}
		return 0, err
	}
	return b, nil
}
