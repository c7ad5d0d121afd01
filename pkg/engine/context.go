package engine

import (
	"context"
	"time"

	"github.com/marmos91/fixengine/pkg/handlers"
	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/statemachine"
	"github.com/marmos91/fixengine/pkg/store"
)

// contextAdapter implements handlers.Context for one Session. It exists
// separately from Session itself so Send can mean two different things:
// Session.Send is the gated, channel-hopping public API;
// contextAdapter.Send is the ungated, same-goroutine call handlers use to
// emit protocol responses (Logon ack, Heartbeat, Reject, …) from states
// where the public API would refuse. Both ultimately go through
// Session.sendAt (Send via rawSend, SendAtSeq via rawSendAt).
//
// Every method below runs on Session's single owning goroutine (dispatch
// is only ever invoked from inside Run's select loop), so none of them
// need their own locking.
type contextAdapter struct {
	s *Session
}

var _ handlers.Context = contextAdapter{}

func (c contextAdapter) SessionID() message.SessionID { return c.s.sessionID }
func (c contextAdapter) Store() store.Store           { return c.s.st }
func (c contextAdapter) Codec() message.Codec         { return c.s.codec }
func (c contextAdapter) IsInitiator() bool            { return c.s.cfg.IsInitiator }

func (c contextAdapter) Send(msg *message.Message) error {
	return c.s.rawSend(msg)
}

func (c contextAdapter) SendAtSeq(msg *message.Message, seq int) error {
	return c.s.rawSendAt(msg, seq)
}

func (c contextAdapter) NextIncoming() int { return c.s.nextIncoming }

func (c contextAdapter) SetNextIncoming(next int) error {
	c.s.nextIncoming = next
	if err := c.s.st.SetIncoming(context.Background(), c.s.sessionID, next); err != nil {
		return &SessionError{Kind: StoreErrorKind, Message: "SetIncoming", Cause: err}
	}
	return nil
}

func (c contextAdapter) NextOutgoing() int { return c.s.nextOutgoing }

func (c contextAdapter) ResetSequences() error {
	c.s.nextIncoming = 1
	c.s.nextOutgoing = 1
	if err := c.s.st.ResetBoth(context.Background(), c.s.sessionID); err != nil {
		return &SessionError{Kind: StoreErrorKind, Message: "ResetBoth", Cause: err}
	}
	return nil
}

func (c contextAdapter) ActivateSession(heartBtInt time.Duration) error {
	if err := c.s.sm.Transition(statemachine.Active); err != nil {
		return err
	}
	c.s.hb = c.s.newHeartbeatMonitor(heartBtInt)
	c.s.hb.Start()
	if c.s.callbacks.OnLogon != nil {
		c.s.callbacks.OnLogon(c.s.sessionID)
	}
	return nil
}

func (c contextAdapter) RequireCredentials() bool { return c.s.cfg.RequireCredentials }

func (c contextAdapter) ValidateCredentials(msg *message.Message) error {
	if c.s.cfg.ValidateCredentials == nil {
		return nil
	}
	return c.s.cfg.ValidateCredentials(msg)
}

func (c contextAdapter) ResetSeqNumRequested() bool { return c.s.cfg.ResetSeqNumOnLogon }

func (c contextAdapter) PendingTestReqID() string {
	if c.s.hb == nil {
		return ""
	}
	return c.s.hb.PendingTestReqID()
}

func (c contextAdapter) ClearPendingTestReqID() {
	if c.s.hb != nil {
		c.s.hb.Received()
	}
}

func (c contextAdapter) NoteReceived() {
	if c.s.hb != nil {
		c.s.hb.Received()
	}
}

func (c contextAdapter) SignalLogoutReceived() {
	select {
	case <-c.s.logoutSignal:
		// already closed
	default:
		close(c.s.logoutSignal)
	}
}

func (c contextAdapter) LogoutInProgress() bool {
	return c.s.sm.Is(statemachine.LogoutInProgress)
}

func (c contextAdapter) Disconnect(graceful bool) error {
	if err := c.s.sm.Transition(statemachine.Disconnected); err != nil {
		return err
	}
	reason := ""
	if !graceful {
		reason = "forced disconnect"
	}
	if c.s.callbacks.OnLogout != nil {
		c.s.callbacks.OnLogout(c.s.sessionID, reason)
	}
	return nil
}

func (c contextAdapter) DeliverToApplication(msg *message.Message) {
	if c.s.callbacks.OnMessageFromApp != nil {
		c.s.callbacks.OnMessageFromApp(msg, c.s.sessionID)
	}
}
