// Package handlers implements the per-MsgType administrative logic: Logon,
// Logout, Heartbeat, TestRequest, ResendRequest, SequenceReset, and Reject.
// Each handler receives a Context — the narrow slice of the session
// engine's capabilities it needs — rather than the engine itself, so this
// package has no dependency on pkg/engine; pkg/engine depends on this
// package and satisfies Context.
//
// Small leaf functions keyed by message type, each returning a result the
// caller interprets rather than acting on side channels directly.
package handlers

import (
	"time"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/store"
)

// Outcome tells the engine how to proceed after a handler runs.
type Outcome int

const (
	// Continue means processing succeeded; advance nextIncoming normally.
	Continue Outcome = iota

	// RejectAndContinue means a Reject(35=3) should be sent but the session
	// stays up and nextIncoming still advances.
	RejectAndContinue

	// LogoutAndDisconnect means a Logout with Text(58) should be sent, then
	// the transport closed — a fatal-but-clean protocol violation.
	LogoutAndDisconnect

	// ForceDisconnect means the transport should close immediately without
	// attempting to send anything further (the connection is presumed bad).
	ForceDisconnect
)

// Result is what every handler returns; the engine's dispatcher translates
// it into one of the four Outcomes above.
type Result struct {
	Outcome Outcome

	// RefTagID/SessionRejectReason/Text populate a Reject(35=3) when
	// Outcome == RejectAndContinue.
	RefTagID            int
	SessionRejectReason int
	Text                string

	// LogoutText populates Logout's Text(58) when Outcome ==
	// LogoutAndDisconnect.
	LogoutText string
}

func ok() *Result { return &Result{Outcome: Continue} }

// Context is the slice of session-engine capabilities a handler needs.
// Implemented by pkg/engine.Session.
type Context interface {
	SessionID() message.SessionID
	Store() store.Store
	Codec() message.Codec

	// IsInitiator reports whether this side placed the outbound connection.
	IsInitiator() bool

	// Send assigns the next outbound sequence number, stamps header fields,
	// persists, and writes msg to the wire. Bypasses the Active-only gate
	// send() normally enforces, since handlers call it to emit protocol
	// responses (Logon ack, Heartbeat, Reject, …) during states where the
	// public API would refuse.
	Send(msg *message.Message) error

	// SendAtSeq stamps and transmits msg with an explicit MsgSeqNum instead
	// of the next fresh outbound one, and does not advance the outbound
	// sequence counter. Used to replay stored messages and gap-fills at the
	// sequence number the peer is actually expecting.
	SendAtSeq(msg *message.Message, seq int) error

	NextIncoming() int
	SetNextIncoming(next int) error
	NextOutgoing() int
	ResetSequences() error

	// ActivateSession transitions the state machine to Active and starts
	// the heartbeat monitor with the given interval.
	ActivateSession(heartBtInt time.Duration) error

	// RequireCredentials/ValidateCredentials support optional Logon
	// credential checking (see pkg/handlers/logon.go).
	RequireCredentials() bool
	ValidateCredentials(msg *message.Message) error

	// ResetSeqNumRequested reports whether this side's configuration wants
	// 141=Y stamped on the next Logon it sends.
	ResetSeqNumRequested() bool

	// PendingTestReqID/ClearPendingTestReqID correlate an outstanding
	// TestRequest with its Heartbeat reply.
	PendingTestReqID() string
	ClearPendingTestReqID()
	NoteReceived()

	// SignalLogoutReceived notifies the logoff-waiter (requestLogoff) that
	// the peer's Logout arrived.
	SignalLogoutReceived()

	// LogoutInProgress reports whether this side already sent its own
	// Logout and is awaiting the peer's confirmation, distinguishing an
	// incoming Logout that is a fresh request from one that is a reply.
	LogoutInProgress() bool

	// Disconnect closes the transport. graceful indicates the shutdown
	// completed the full Logout handshake rather than being forced.
	Disconnect(graceful bool) error

	// DeliverToApplication forwards an unrecognized MsgType to the
	// application's onMessageFromApp callback.
	DeliverToApplication(msg *message.Message)
}

// Handler processes one inbound message of its registered MsgType.
type Handler func(ctx Context, msg *message.Message) (*Result, error)
