// Package engine implements the session engine: the top-level coordinator
// that owns the message store, state machine, heartbeat monitor, and
// handler dispatch table for one logical FIX session, and exposes the
// session's public API.
//
// A per-connection goroutine runs a select loop until context cancellation
// or a read error, with panic recovery so one session's bug cannot take
// down a process hosting several. Cross-goroutine calls (the public
// Send/RequestLogoff/Disconnect) are
// funneled through a command channel so all session-state mutation happens
// on the single owning goroutine, one logical task per
// session" requirement without a mutex around SessionState.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/marmos91/fixengine/internal/logger"
	"github.com/marmos91/fixengine/pkg/dispatch"
	"github.com/marmos91/fixengine/pkg/heartbeat"
	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/metrics"
	"github.com/marmos91/fixengine/pkg/statemachine"
	"github.com/marmos91/fixengine/pkg/store"
	"github.com/marmos91/fixengine/pkg/transport"
)

// Session is one logical FIX session: owns C1-C6 for the duration of one
// connection's lifetime and exposes create/setSequenceNumbers/start/send/
// requestLogoff/disconnect.
type Session struct {
	cfg       Config
	callbacks Callbacks
	st        store.Store
	codec     message.Codec
	table     *dispatch.Table
	sm        *statemachine.Machine

	sessionID message.SessionID

	conn net.Conn

	nextIncoming int
	nextOutgoing int

	hb *heartbeat.Monitor

	cmdCh  chan func()
	doneCh chan struct{}
	runErr error
	once   sync.Once

	logoutInProgress bool
	logoutSignal     chan struct{}

	started bool

	metrics *metrics.SessionMetrics
}

// SetMetrics attaches a SessionMetrics instance, wiring a state-transition
// observer that records every move. Passing nil (or never calling this)
// disables instrumentation at zero cost — every SessionMetrics method is a
// nil-receiver no-op. Valid only before Run.
func (s *Session) SetMetrics(m *metrics.SessionMetrics) {
	s.metrics = m
	s.sm.OnTransition(func(from, to statemachine.State) {
		m.RecordTransition(from.String(), to.String())
	})
}

// Create constructs a Session, loading the durable sequence counters from
// st. It does not start any I/O — start() (Run) does that.
func Create(cfg Config, callbacks Callbacks, st store.Store, codec message.Codec) (*Session, error) {
	cfg = cfg.applyDefaults()
	sessionID := cfg.SessionID()

	ctx := context.Background()
	nextIn, err := st.NextIncoming(ctx, sessionID)
	if err != nil {
		return nil, &SessionError{Kind: StoreErrorKind, Message: "load nextIncoming", Cause: err}
	}
	nextOut, err := st.NextOutgoing(ctx, sessionID)
	if err != nil {
		return nil, &SessionError{Kind: StoreErrorKind, Message: "load nextOutgoing", Cause: err}
	}

	s := &Session{
		cfg:          cfg,
		callbacks:    callbacks,
		st:           st,
		codec:        codec,
		table:        dispatch.New(),
		sm:           statemachine.New(),
		sessionID:    sessionID,
		nextIncoming: nextIn,
		nextOutgoing: nextOut,
		cmdCh:        make(chan func()),
		doneCh:       make(chan struct{}),
		logoutSignal: make(chan struct{}),
	}

	if callbacks.OnCreate != nil {
		callbacks.OnCreate(sessionID)
	}
	return s, nil
}

// SetSequenceNumbers overrides the durable sequence counters. Valid only
// before start().
func (s *Session) SetSequenceNumbers(incoming, outgoing int) error {
	if s.started {
		return &SessionError{Kind: InvalidState, Message: "SetSequenceNumbers after start"}
	}
	ctx := context.Background()
	if err := s.st.SetIncoming(ctx, s.sessionID, incoming); err != nil {
		return &SessionError{Kind: StoreErrorKind, Message: "SetIncoming", Cause: err}
	}
	if err := s.st.SetOutgoing(ctx, s.sessionID, outgoing); err != nil {
		return &SessionError{Kind: StoreErrorKind, Message: "SetOutgoing", Cause: err}
	}
	s.nextIncoming = incoming
	s.nextOutgoing = outgoing
	return nil
}

// OnTransition registers a state-change observer.
// Registration is only valid before start(), to avoid races per the design
// note.
func (s *Session) OnTransition(l statemachine.Listener) {
	s.sm.OnTransition(l)
}

// Run drives the session to completion over an already-established
// connection (produced by pkg/transport.Initiator.Dial/Reconnect or
// pkg/transport.Acceptor.Accept). It blocks until the session reaches
// Disconnected, ctx is canceled, or an unrecoverable transport error
// occurs. This is the session's start, parameterized by the connection so the
// test suite can drive it over net.Pipe().
func (s *Session) Run(ctx context.Context, conn net.Conn) (err error) {
	s.started = true
	s.conn = conn
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session panicked",
				logger.SessionID(s.sessionID.String()),
				"recover", r,
				"stack", string(debug.Stack()),
			)
			err = &SessionError{Kind: TransportError, Message: fmt.Sprintf("panic: %v", r)}
		}
		s.runErr = err
		close(s.doneCh)
		if s.hb != nil {
			s.hb.Stop()
		}
		_ = conn.Close()
	}()

	if s.cfg.IsInitiator {
		if err := s.sm.Transition(statemachine.Connecting); err != nil {
			return err
		}
		if err := s.sm.Transition(statemachine.LogonInProgress); err != nil {
			return err
		}
		if err := s.sendLogon(); err != nil {
			return err
		}
	} else {
		if err := s.sm.Transition(statemachine.AwaitingLogon); err != nil {
			return err
		}
	}

	reader := bufio.NewReader(conn)
	inboundCh := make(chan []byte)
	readErrCh := make(chan error, 1)
	readDone := make(chan struct{})
	go func() {
		for {
			raw, err := transport.ReadMessage(reader)
			if err != nil {
				readErrCh <- err
				return
			}
			select {
			case inboundCh <- raw:
			case <-readDone:
				return
			}
		}
	}()
	defer close(readDone)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw := <-inboundCh:
			if err := s.handleInboundRaw(raw); err != nil {
				return err
			}
			if s.sm.Is(statemachine.Disconnected) {
				return nil
			}

		case err := <-readErrCh:
			s.handleTransportError(err)
			return err

		case cmd := <-s.cmdCh:
			cmd()
			if s.sm.Is(statemachine.Disconnected) {
				return nil
			}
		}
	}
}

// enqueue schedules fn to run on the owning goroutine inside Run's select
// loop. Safe to call from any goroutine; a no-op once the session is done.
func (s *Session) enqueue(fn func()) {
	select {
	case s.cmdCh <- fn:
	case <-s.doneCh:
	}
}

// Send is the public, application-facing send: valid only in
// Active, thread-safe, assigns the next outbound sequence number. Engine-
// internal sends (Logon ack, Heartbeat, Reject, …) go through the
// handlers.Context adapter's Send instead, which bypasses the gate — see
// contextAdapter in context.go.
func (s *Session) Send(msg *message.Message) error {
	resultCh := make(chan error, 1)
	select {
	case s.cmdCh <- func() {
		if !s.sm.CanSend() {
			resultCh <- &SessionError{Kind: InvalidState, Message: "send outside Active"}
			return
		}
		if s.callbacks.ToApp != nil {
			if err := s.callbacks.ToApp(msg, s.sessionID); err != nil {
				resultCh <- err
				return
			}
		}
		resultCh <- s.rawSend(msg)
	}:
	case <-s.doneCh:
		return ErrSessionClosed
	}

	select {
	case err := <-resultCh:
		return err
	case <-s.doneCh:
		return ErrSessionClosed
	}
}

// RequestLogoff sends Logout and waits on the
// single-shot logoff waiter for up to timeout, then disconnect regardless.
func (s *Session) RequestLogoff(timeout time.Duration) error {
	done := make(chan error, 1)
	s.enqueue(func() {
		if !s.sm.Is(statemachine.Active) {
			done <- &SessionError{Kind: InvalidState, Message: "requestLogoff outside Active"}
			return
		}
		msg := message.New()
		msg.SetString(message.TagMsgType, message.MsgTypeLogout)
		msg.SetString(message.TagText, "Operator requested logout")
		if err := s.rawSend(msg); err != nil {
			done <- err
			return
		}
		s.logoutInProgress = true
		_ = s.sm.Transition(statemachine.LogoutInProgress)
		done <- nil
	})
	if err := <-done; err != nil {
		return err
	}

	select {
	case <-s.logoutSignal:
	case <-time.After(timeout):
	case <-s.doneCh:
	}
	return s.Disconnect(true)
}

// Disconnect closes the transport gracefully,
// first ensuring Logout was sent if graceful.
func (s *Session) Disconnect(graceful bool) error {
	result := make(chan error, 1)
	s.once.Do(func() {
		s.enqueue(func() {
			if graceful && s.sm.Is(statemachine.Active) {
				msg := message.New()
				msg.SetString(message.TagMsgType, message.MsgTypeLogout)
				_ = s.rawSend(msg)
			}
			reason := ""
			if !graceful {
				reason = "forced disconnect"
			}
			_ = s.sm.Transition(statemachine.Disconnected)
			if s.callbacks.OnLogout != nil {
				s.callbacks.OnLogout(s.sessionID, reason)
			}
			result <- nil
		})
	})
	select {
	case err := <-result:
		return err
	case <-s.doneCh:
		return nil
	}
}

func (s *Session) handleTransportError(err error) {
	logger.Warn("transport error, disconnecting session",
		logger.SessionID(s.sessionID.String()),
		logger.KeyError, err,
	)
	_ = s.sm.Transition(statemachine.Disconnected)
	if s.callbacks.OnLogout != nil {
		s.callbacks.OnLogout(s.sessionID, err.Error())
	}
}

func (s *Session) sendLogon() error {
	msg := message.New()
	msg.SetString(message.TagMsgType, message.MsgTypeLogon)
	msg.SetString(message.TagEncryptMethod, "0")
	msg.SetInt(message.TagHeartBtInt, int(s.cfg.HeartBtInt/time.Second))
	if s.cfg.ResetSeqNumOnLogon {
		msg.SetString(message.TagResetSeqNumFlag, "Y")
		s.nextOutgoing = 1
		s.nextIncoming = 1
		if err := s.st.ResetBoth(context.Background(), s.sessionID); err != nil {
			return &SessionError{Kind: StoreErrorKind, Message: "ResetBoth", Cause: err}
		}
	}
	return s.rawSend(msg)
}
