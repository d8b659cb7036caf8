package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wolimst/secs-core/pkg/hsms"
	"github.com/wolimst/secs-core/pkg/router"
	"github.com/wolimst/secs-core/pkg/secs1"
	"github.com/wolimst/secs-core/pkg/secserr"
	"github.com/wolimst/secs-core/pkg/sysbytes"
)

// Options configures a protocol Session (spec.md §6 "Session
// configuration", the subset the protocol layer itself consumes).
type Options struct {
	T3           time.Duration // reply timeout
	PollInterval time.Duration // PollOnce's cooperative receive granularity

	SessionID        uint16 // HSMS data-message SessionID
	SECS1ReverseBit  bool   // copied into the SECS-I header; secs1.StateMachine.Send replaces it with its own Options.ReverseBit, so it does not reach the wire
	SECS1DeviceID    uint16

	Logger *logrus.Logger
}

// DefaultOptions returns spec.md's default protocol-layer timers.
func DefaultOptions() Options {
	return Options{T3: 45 * time.Second, PollInterval: 20 * time.Millisecond}
}

// Session is the unified, backend-agnostic request/response façade over
// either an HSMS Session or a SECS-I StateMachine (spec.md §4.6).
type Session struct {
	backend backend
	router  *router.Router
	sys     *sysbytes.Allocator
	opts    Options
	log     *logrus.Logger

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}

	runOnce sync.Once
}

// NewHSMS builds a protocol Session backed by an HSMS-SS session.
func NewHSMS(sess *hsms.Session, opts Options) *Session {
	return newSession(newHSMSBackend(sess, opts.SessionID), opts)
}

// NewSECS1 builds a protocol Session backed by a SECS-I state machine.
func NewSECS1(sm *secs1.StateMachine, opts Options) *Session {
	return newSession(newSECS1Backend(sm, opts.SECS1DeviceID, opts.SECS1ReverseBit), opts)
}

func newSession(b backend, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{
		backend: b,
		router:  router.New(),
		sys:     sysbytes.New(1),
		opts:    opts,
		log:     logger,
		stopCh:  make(chan struct{}),
	}
}

// Router exposes the (Stream, Function) -> Handler dispatch table for
// registering primary handlers.
func (s *Session) Router() *router.Router {
	return s.router
}

// Send transmits a one-way primary (W=0) per spec.md §4.6 "Send".
func (s *Session) Send(ctx context.Context, stream, function uint8, body []byte) error {
	sysBytes, err := s.sys.Allocate()
	if err != nil {
		return err
	}
	defer s.sys.Release(sysBytes)

	msg := DataMessage{Stream: stream, Function: function, WaitBit: false, SystemBytes: sysBytes, Body: body}
	return s.backend.send(ctx, msg)
}

// Request sends a W=1 primary and waits for its correlated secondary
// (spec.md §4.6 "Request"). function must be odd, nonzero, and not 0xFF
// (otherwise function+1 would overflow the byte).
func (s *Session) Request(ctx context.Context, stream, function uint8, body []byte) (DataMessage, error) {
	if stream > 127 {
		return DataMessage{}, secserr.Wrap("protocol.Request", secserr.ErrInvalidArgument, fmt.Errorf("stream %d exceeds 127", stream))
	}
	if function == 0 || function%2 == 0 || function == 0xFF {
		return DataMessage{}, secserr.Wrap("protocol.Request", secserr.ErrInvalidArgument, fmt.Errorf("function %d must be odd, nonzero, and not 0xFF", function))
	}

	sysBytes, err := s.sys.Allocate()
	if err != nil {
		return DataMessage{}, err
	}
	defer s.sys.Release(sysBytes)

	if s.opts.T3 > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.T3)
		defer cancel()
	}

	msg := DataMessage{Stream: stream, Function: function, WaitBit: true, SystemBytes: sysBytes, Body: body}
	return s.backend.request(ctx, s, msg)
}

// handlePrimary dispatches an inbound primary to the router and, if it
// expects a reply, sends the auto-synthesized secondary (spec.md §4.6
// "Inbound handling"). A handler error suppresses the auto-reply.
func (s *Session) handlePrimary(ctx context.Context, msg DataMessage) error {
	handler, ok := s.router.Find(msg.Stream, msg.Function)
	if !ok {
		return nil
	}
	respBody, err := handler(msg.Body)
	if err != nil {
		return err
	}
	if !msg.WaitBit {
		return nil
	}
	reply := DataMessage{
		Stream:      msg.Stream,
		Function:    msg.Function + 1,
		WaitBit:     false,
		SystemBytes: msg.SystemBytes,
		Body:        respBody,
	}
	return s.backend.send(ctx, reply)
}

// dispatchInbound is Run/PollOnce's handling of one message not already
// correlated to a pending Request: primaries go to handlePrimary,
// unmatched secondaries (late replies) are discarded.
func (s *Session) dispatchInbound(ctx context.Context, msg DataMessage) {
	if msg.IsPrimary() {
		if err := s.handlePrimary(ctx, msg); err != nil {
			s.log.Warnf("protocol: handler error for S%dF%d: %v", msg.Stream, msg.Function, err)
		}
		return
	}
	s.log.Debugf("protocol: discarding unmatched secondary S%dF%d", msg.Stream, msg.Function)
}

// Run repeatedly receives inbound messages and dispatches them until ctx
// is done or Stop is called. On SECS-I, callers must not invoke Run
// concurrently with Request (the state machine is half duplex).
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-s.stopCh:
			return secserr.Wrap("protocol.Run", secserr.ErrCancelled, nil)
		case <-ctx.Done():
			return secserr.Wrap("protocol.Run", secserr.ErrCancelled, ctx.Err())
		default:
		}

		msg, err := s.backend.receive(ctx)
		if err != nil {
			return err
		}
		s.dispatchInbound(ctx, msg)
	}
}

// PollOnce performs a single bounded receive-and-dispatch step, for
// cooperative main loops that cannot block in Run (spec.md §4.6
// "poll_once"). A timeout elapsing with nothing to receive is not an
// error; the caller should simply poll again.
func (s *Session) PollOnce(ctx context.Context) error {
	timeout := s.opts.PollInterval
	if timeout <= 0 {
		timeout = 20 * time.Millisecond
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := s.backend.receive(pollCtx)
	if err != nil {
		if secserr.IsTimeout(err) {
			return nil
		}
		return err
	}
	s.dispatchInbound(ctx, msg)
	return nil
}

// Stop cancels Run/PollOnce and tears down the underlying backend (spec.md
// §4.6 "Stop").
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	s.backend.stop()
}
