package hsms

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-collections/collections/queue"
	"github.com/sirupsen/logrus"

	"github.com/wolimst/secs-core/pkg/event"
	"github.com/wolimst/secs-core/pkg/secserr"
	"github.com/wolimst/secs-core/pkg/sysbytes"
)

// State is the session's selection phase (spec.md §3 "Session State").
type State uint8

const (
	StateDisconnected State = iota
	StateConnected
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// Options configures a Session's timers and policy (spec.md §6 "Session
// configuration").
type Options struct {
	SessionID uint16

	T3 time.Duration // reply timeout
	T5 time.Duration // reconnect delay
	T6 time.Duration // control transaction timeout
	T7 time.Duration // not-selected timeout (passive)
	T8 time.Duration // inter-character/network timeout

	LinktestInterval               time.Duration // 0 disables periodic linktest
	LinktestMaxConsecutiveFailures int

	AutoReconnect       bool
	PassiveAcceptSelect bool
	MaxPendingRequests  int

	Logger *logrus.Logger
}

// DefaultOptions returns spec.md's default HSMS timers and policy.
func DefaultOptions() Options {
	return Options{
		T3:                             45 * time.Second,
		T5:                             10 * time.Second,
		T6:                             5 * time.Second,
		T7:                             10 * time.Second,
		T8:                             5 * time.Second,
		LinktestMaxConsecutiveFailures: 1,
		MaxPendingRequests:             256,
		PassiveAcceptSelect:            true,
	}
}

// pendingKind distinguishes what a pendingEntry is waiting for.
type pendingKind uint8

const (
	pendingControl pendingKind = iota
	pendingData
)

type pendingEntry struct {
	kind pendingKind

	expectedSType    SType // pendingControl
	expectedFunction uint8 // pendingData: primary.Function()+1
	expectedStream   uint8 // pendingData

	ev  *event.Event
	msg Message
	err error
}

// Dialer opens a fresh active connection on (re)connect. Supplied by the
// caller so Session stays transport-agnostic (TCP dialer, or
// DialMemory-backed pair in tests).
type Dialer func(ctx context.Context) (*Connection, error)

// Session drives the HSMS-SS selection state machine over a Connection:
// SELECT/DESELECT/LINKTEST control transactions, a reader loop that
// correlates replies by SystemBytes and routes inbound primaries, a
// periodic linktest loop, and (for active sessions) auto-reconnect
// (spec.md §4.5).
type Session struct {
	opts Options
	log  *logrus.Logger

	dial Dialer // nil for passive sessions

	mu                 sync.Mutex
	state              State
	conn               *Connection
	selectedGeneration uint64
	stopped            bool

	sysbytes *sysbytes.Allocator

	// controlPending and dataPending are tracked separately so that
	// MaxPendingRequests (data-request admission control) never counts
	// in-flight SELECT/DESELECT/LINKTEST transactions.
	pendMu         sync.Mutex
	controlPending map[uint32]*pendingEntry
	dataPending    map[uint32]*pendingEntry

	inboundMu     sync.Mutex
	inboundQ      *queue.Queue
	inboundNotify chan struct{}

	stopCh        chan struct{}
	readerStopped *event.Event
	selectSeenCh  chan struct{}

	// linktestFailures and reconnects are cumulative counters exposed to
	// internal/metrics; linktestFailures resets are NOT reflected here,
	// it only ever increases, matching a Prometheus counter's semantics.
	linktestFailures uint64
	reconnects       uint64
}

// NewActive creates a Session that opens connections via dial (e.g. a TCP
// dialer) and auto-reconnects if Options.AutoReconnect is set.
func NewActive(dial Dialer, opts Options) *Session {
	return newSession(dial, opts)
}

// NewPassive creates a Session bound to an already-accepted conn, awaiting
// a SELECT.req within Options.T7.
func NewPassive(conn *Connection, opts Options) *Session {
	s := newSession(nil, opts)
	s.conn = conn
	s.state = StateConnected
	return s
}

func newSession(dial Dialer, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{
		opts:          opts,
		log:           logger,
		dial:          dial,
		sysbytes:       sysbytes.New(1),
		controlPending: make(map[uint32]*pendingEntry),
		dataPending:    make(map[uint32]*pendingEntry),
		inboundQ:      queue.New(),
		inboundNotify: make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		readerStopped: event.New(),
	}
}

// State reports the session's current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectedGeneration reports the monotonic counter incremented each time
// the session enters selected.
func (s *Session) SelectedGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedGeneration
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	if st == StateSelected {
		s.selectedGeneration++
	}
	s.mu.Unlock()
}

func (s *Session) connection() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// OpenActive connects (via Dialer), starts the reader loop, performs the
// SELECT handshake bounded by T6, and on success starts the linktest loop
// (spec.md §4.5 "Open active").
func (s *Session) OpenActive(ctx context.Context) error {
	if s.dial == nil {
		return secserr.Wrap("hsms.OpenActive", secserr.ErrInvalidArgument, fmt.Errorf("session has no dialer"))
	}
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	go s.readerLoop()

	if err := s.selectActive(ctx); err != nil {
		_ = conn.Close()
		return err
	}

	s.setState(StateSelected)
	if s.opts.LinktestInterval > 0 {
		go s.linktestLoop()
	}
	if s.opts.AutoReconnect {
		go s.watchDisconnect()
	}
	return nil
}

// OpenPassive starts the reader loop and waits up to T7 for the peer's
// SELECT.req, replying per Options.PassiveAcceptSelect, then starts the
// linktest loop on success (spec.md §4.5 "Open passive").
func (s *Session) OpenPassive(ctx context.Context) error {
	go s.readerLoop()

	deadline := s.opts.T7
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	select {
	case <-s.selectReqSeen():
	case <-waitCtx.Done():
		conn := s.connection()
		if conn != nil {
			_ = conn.Close()
		}
		return secserr.Wrap("hsms.OpenPassive", secserr.ErrTimeout, waitCtx.Err())
	}

	if s.State() != StateSelected {
		return secserr.Wrap("hsms.OpenPassive", secserr.ErrInvalidArgument, fmt.Errorf("select rejected"))
	}
	if s.opts.LinktestInterval > 0 {
		go s.linktestLoop()
	}
	return nil
}

// selectReqSeen is fulfilled by the reader loop once it has processed (and
// replied to) the peer's SELECT.req; see readerLoop's handling of
// STypeSelectReq.
func (s *Session) selectReqSeen() <-chan struct{} {
	s.mu.Lock()
	if s.selectSeenCh == nil {
		s.selectSeenCh = make(chan struct{})
	}
	ch := s.selectSeenCh
	s.mu.Unlock()
	return ch
}

func (s *Session) selectActive(ctx context.Context) error {
	sysBytes, err := s.sysbytes.Allocate()
	if err != nil {
		return err
	}
	defer s.sysbytes.Release(sysBytes)

	req := NewSelectReq(s.opts.SessionID, sysBytes)
	entry := &pendingEntry{kind: pendingControl, expectedSType: STypeSelectRsp, ev: event.New()}
	s.registerPending(pendingControl, sysBytes, entry)
	defer s.removePending(pendingControl, sysBytes)

	conn := s.connection()
	if err := conn.WriteFrame(ctx, req); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timerOr(s.opts.T6, 5*time.Second))
	defer cancel()
	if err := entry.ev.Wait(waitCtx); err != nil {
		return err
	}
	if entry.err != nil {
		return entry.err
	}
	if entry.msg.Status() != 0 {
		return secserr.Wrap("hsms.selectActive", secserr.ErrInvalidArgument, fmt.Errorf("select.rsp status %d", entry.msg.Status()))
	}
	return nil
}

func (s *Session) timerOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// controlTransaction allocates system bytes, installs a pending entry
// keyed on it with expectedSType, sends req, and waits bounded by T6
// (spec.md §4.5 "Control transaction").
func (s *Session) controlTransaction(ctx context.Context, build func(systemBytes uint32) Message, expect SType) (Message, error) {
	sysBytes, err := s.sysbytes.Allocate()
	if err != nil {
		return Message{}, err
	}
	defer s.sysbytes.Release(sysBytes)

	entry := &pendingEntry{kind: pendingControl, expectedSType: expect, ev: event.New()}
	s.registerPending(pendingControl, sysBytes, entry)
	defer s.removePending(pendingControl, sysBytes)

	conn := s.connection()
	if conn == nil {
		return Message{}, secserr.Wrap("hsms.controlTransaction", secserr.ErrInvalidArgument, fmt.Errorf("not connected"))
	}
	if err := conn.WriteFrame(ctx, build(sysBytes)); err != nil {
		return Message{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timerOr(s.opts.T6, 5*time.Second))
	defer cancel()
	if err := entry.ev.Wait(waitCtx); err != nil {
		return Message{}, err
	}
	if entry.err != nil {
		return Message{}, entry.err
	}
	return entry.msg, nil
}

// Deselect performs a DESELECT control transaction.
func (s *Session) Deselect(ctx context.Context) error {
	rsp, err := s.controlTransaction(ctx, func(sb uint32) Message {
		return NewDeselectReq(s.opts.SessionID, sb)
	}, STypeDeselectRsp)
	if err != nil {
		return err
	}
	if rsp.Status() != 0 {
		return secserr.Wrap("hsms.Deselect", secserr.ErrInvalidArgument, fmt.Errorf("deselect.rsp status %d", rsp.Status()))
	}
	s.setState(StateConnected)
	return nil
}

// Linktest performs a LINKTEST control transaction bounded by T6.
func (s *Session) Linktest(ctx context.Context) error {
	_, err := s.controlTransaction(ctx, func(sb uint32) Message {
		return NewLinktestReq(sb)
	}, STypeLinktestRsp)
	return err
}

// Send transmits msg without waiting for a reply (W=0 primaries and
// one-way backend sends).
func (s *Session) Send(ctx context.Context, msg Message) error {
	conn := s.connection()
	if conn == nil {
		return secserr.Wrap("hsms.Send", secserr.ErrInvalidArgument, fmt.Errorf("not connected"))
	}
	return conn.WriteFrame(ctx, msg)
}

// Request sends a W=1 data primary and waits for its secondary, bounded
// by T3 and admission-controlled by MaxPendingRequests (spec.md §4.6
// "HSMS (full duplex)").
func (s *Session) Request(ctx context.Context, primary Message) (Message, error) {
	s.pendMu.Lock()
	if len(s.dataPending) >= s.opts.MaxPendingRequests {
		s.pendMu.Unlock()
		return Message{}, secserr.Wrap("hsms.Request", secserr.ErrBufferOverflow, fmt.Errorf("pending requests at limit %d", s.opts.MaxPendingRequests))
	}
	s.pendMu.Unlock()

	entry := &pendingEntry{
		kind:             pendingData,
		expectedStream:   primary.Stream(),
		expectedFunction: primary.Function() + 1,
		ev:               event.New(),
	}
	s.registerPending(pendingData, primary.SystemBytes, entry)
	defer s.removePending(pendingData, primary.SystemBytes)

	if err := s.Send(ctx, primary); err != nil {
		return Message{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timerOr(s.opts.T3, 45*time.Second))
	defer cancel()
	if err := entry.ev.Wait(waitCtx); err != nil {
		return Message{}, err
	}
	if entry.err != nil {
		return Message{}, entry.err
	}
	return entry.msg, nil
}

// ReceiveData pops the next inbound data message not matched to a
// Request, blocking until one arrives, ctx expires, or Stop is called.
func (s *Session) ReceiveData(ctx context.Context) (Message, error) {
	for {
		s.inboundMu.Lock()
		if s.inboundQ.Len() > 0 {
			v := s.inboundQ.Dequeue()
			s.inboundMu.Unlock()
			return v.(Message), nil
		}
		s.inboundMu.Unlock()

		select {
		case <-s.inboundNotify:
			continue
		case <-s.stopCh:
			return Message{}, secserr.Wrap("hsms.ReceiveData", secserr.ErrCancelled, nil)
		case <-ctx.Done():
			return Message{}, secserr.Wrap("hsms.ReceiveData", secserr.ErrTimeout, ctx.Err())
		}
	}
}

func (s *Session) enqueueInbound(msg Message) {
	s.inboundMu.Lock()
	s.inboundQ.Enqueue(msg)
	s.inboundMu.Unlock()
	select {
	case s.inboundNotify <- struct{}{}:
	default:
	}
}

func (s *Session) pendingMap(kind pendingKind) map[uint32]*pendingEntry {
	if kind == pendingControl {
		return s.controlPending
	}
	return s.dataPending
}

func (s *Session) registerPending(kind pendingKind, sysBytes uint32, entry *pendingEntry) {
	s.pendMu.Lock()
	s.pendingMap(kind)[sysBytes] = entry
	s.pendMu.Unlock()
}

func (s *Session) removePending(kind pendingKind, sysBytes uint32) {
	s.pendMu.Lock()
	delete(s.pendingMap(kind), sysBytes)
	s.pendMu.Unlock()
}

// PendingCount reports the number of in-flight data requests
// (MaxPendingRequests admission excludes control transactions), for
// metrics.
func (s *Session) PendingCount() int {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	return len(s.dataPending)
}

// LinktestFailures reports the cumulative count of failed LINKTEST
// transactions observed by the linktest loop, for metrics.
func (s *Session) LinktestFailures() uint64 {
	return atomic.LoadUint64(&s.linktestFailures)
}

// Reconnects reports the cumulative count of auto-reconnect attempts made
// after a connection loss, for metrics.
func (s *Session) Reconnects() uint64 {
	return atomic.LoadUint64(&s.reconnects)
}

// readerLoop repeatedly reads frames and dispatches them: control
// responses fulfill pending entries; control requests (LINKTEST.req,
// DESELECT.req, SELECT.req) are answered immediately; data messages
// either fulfill a pending Request or are enqueued for ReceiveData
// (spec.md §4.5 "Reader loop").
func (s *Session) readerLoop() {
	defer s.readerStopped.Set()
	for {
		conn := s.connection()
		if conn == nil {
			return
		}
		msg, err := conn.ReadFrame(context.Background())
		if err != nil {
			s.onDisconnect(err)
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg Message) {
	switch msg.SType {
	case STypeSelectReq:
		s.handleSelectReq(msg)
	case STypeSelectRsp, STypeDeselectRsp, STypeLinktestRsp:
		s.fulfillControl(msg)
	case STypeLinktestReq:
		conn := s.connection()
		if conn != nil {
			_ = conn.WriteFrame(context.Background(), NewLinktestRsp(msg))
		}
	case STypeDeselectReq:
		conn := s.connection()
		if conn != nil {
			_ = conn.WriteFrame(context.Background(), NewDeselectRsp(msg, 0))
		}
		s.setState(StateConnected)
	case STypeSeparateReq:
		conn := s.connection()
		if conn != nil {
			_ = conn.Close()
		}
	case STypeRejectReq:
		s.fulfillControl(msg)
	case STypeData:
		s.dispatchData(msg)
	}
}

func (s *Session) handleSelectReq(req Message) {
	conn := s.connection()
	status := byte(1)
	if s.opts.PassiveAcceptSelect {
		status = 0
	}
	if conn != nil {
		_ = conn.WriteFrame(context.Background(), NewSelectRsp(req, status))
	}
	if status == 0 {
		s.setState(StateSelected)
	} else if conn != nil {
		_ = conn.Close()
	}

	s.mu.Lock()
	if s.selectSeenCh == nil {
		s.selectSeenCh = make(chan struct{})
	}
	select {
	case <-s.selectSeenCh:
	default:
		close(s.selectSeenCh)
	}
	s.mu.Unlock()
}

func (s *Session) fulfillControl(msg Message) {
	s.pendMu.Lock()
	entry, ok := s.controlPending[msg.SystemBytes]
	s.pendMu.Unlock()
	if !ok {
		return
	}
	if msg.SType != entry.expectedSType && msg.SType != STypeRejectReq {
		return
	}
	entry.msg = msg
	if msg.SType == STypeRejectReq {
		entry.err = secserr.Wrap("hsms.reader", secserr.ErrInvalidArgument, fmt.Errorf("reject.req reason %d", msg.Status()))
	}
	entry.ev.Set()
}

func (s *Session) dispatchData(msg Message) {
	if !msg.WaitBit() {
		s.pendMu.Lock()
		entry, ok := s.dataPending[msg.SystemBytes]
		if ok && entry.expectedStream == msg.Stream() && entry.expectedFunction == msg.Function() {
			s.pendMu.Unlock()
			entry.msg = msg
			entry.ev.Set()
			return
		}
		s.pendMu.Unlock()
	}
	s.enqueueInbound(msg)
}

// linktestLoop periodically issues LINKTEST.req; after
// LinktestMaxConsecutiveFailures consecutive failures it closes the
// connection and, if AutoReconnect, relies on watchDisconnect to
// reconnect after T5 (spec.md §4.5 "Linktest loop").
func (s *Session) linktestLoop() {
	ticker := time.NewTicker(s.opts.LinktestInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.State() != StateSelected {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.timerOr(s.opts.T6, 5*time.Second))
			err := s.Linktest(ctx)
			cancel()
			if err != nil {
				failures++
				atomic.AddUint64(&s.linktestFailures, 1)
				s.log.Warnf("hsms: linktest failure %d/%d: %v", failures, s.opts.LinktestMaxConsecutiveFailures, err)
				if failures >= s.opts.LinktestMaxConsecutiveFailures {
					conn := s.connection()
					if conn != nil {
						_ = conn.Close()
					}
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// watchDisconnect waits for the reader loop to stop, then (if AutoReconnect
// and not explicitly stopped) clears pending entries, resets to
// disconnected, sleeps T5, and retries OpenActive (spec.md §4.5
// "Auto-reconnect").
func (s *Session) watchDisconnect() {
	<-s.readerStoppedWaitCh()
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped || !s.opts.AutoReconnect {
		return
	}
	s.cancelAllPending()
	s.setState(StateDisconnected)

	select {
	case <-s.stopCh:
		return
	case <-time.After(s.timerOr(s.opts.T5, 10*time.Second)):
	}

	s.mu.Lock()
	s.readerStopped = event.New()
	s.mu.Unlock()

	atomic.AddUint64(&s.reconnects, 1)
	ctx := context.Background()
	if err := s.OpenActive(ctx); err != nil {
		s.log.Errorf("hsms: reconnect failed: %v", err)
	}
}

func (s *Session) readerStoppedWaitCh() <-chan struct{} {
	s.mu.Lock()
	ev := s.readerStopped
	s.mu.Unlock()
	ch := make(chan struct{})
	go func() {
		_ = ev.Wait(context.Background())
		close(ch)
	}()
	return ch
}

func (s *Session) onDisconnect(err error) {
	s.log.Warnf("hsms: connection lost: %v", err)
}

// WaitSelected blocks until SelectedGeneration() >= minGeneration,
// supplementing spec.md's session surface from the original
// implementation's session.hpp for callers (and tests) that must not race
// a reconnect.
func (s *Session) WaitSelected(ctx context.Context, minGeneration uint64) error {
	for {
		if s.SelectedGeneration() >= minGeneration {
			return nil
		}
		select {
		case <-time.After(s.timerOr(s.opts.T8, time.Second) / 10):
			continue
		case <-ctx.Done():
			return secserr.Wrap("hsms.WaitSelected", secserr.ErrTimeout, ctx.Err())
		case <-s.stopCh:
			return secserr.Wrap("hsms.WaitSelected", secserr.ErrCancelled, nil)
		}
	}
}

// WaitReaderStopped blocks until the reader loop has exited, for
// deterministic shutdown in tests.
func (s *Session) WaitReaderStopped(ctx context.Context) error {
	s.mu.Lock()
	ev := s.readerStopped
	s.mu.Unlock()
	return ev.Wait(ctx)
}

func (s *Session) cancelAllPending() {
	s.pendMu.Lock()
	entries := make([]*pendingEntry, 0, len(s.controlPending)+len(s.dataPending))
	for k, e := range s.controlPending {
		entries = append(entries, e)
		delete(s.controlPending, k)
	}
	for k, e := range s.dataPending {
		entries = append(entries, e)
		delete(s.dataPending, k)
	}
	s.pendMu.Unlock()
	for _, e := range entries {
		e.err = secserr.Wrap("hsms.Session", secserr.ErrCancelled, nil)
		e.ev.Cancel()
	}
}

// Stop cancels all pending entries with Cancelled, closes the underlying
// connection, and stops the reader/linktest loops (spec.md §4.5 "The
// session stops cleanly when stop() is called").
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	conn := s.conn
	s.mu.Unlock()

	close(s.stopCh)
	s.cancelAllPending()
	if conn != nil {
		_ = conn.Close()
	}
	s.setState(StateDisconnected)
}
