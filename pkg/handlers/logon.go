package handlers

import (
	"time"

	"github.com/marmos91/fixengine/pkg/message"
)

// HandleLogon implements Logon handling: acceptor-side validation and
// sequence-reset negotiation, or initiator-side acceptance of the
// acceptor's Logon response, followed in both cases by activation.
func HandleLogon(ctx Context, msg *message.Message) (*Result, error) {
	resetRequested := msg.GetString(message.TagResetSeqNumFlag) == "Y"
	seq, _ := msg.MsgSeqNum()

	if !ctx.IsInitiator() {
		if ctx.RequireCredentials() {
			if err := ctx.ValidateCredentials(msg); err != nil {
				return &Result{
					Outcome:    LogoutAndDisconnect,
					LogoutText: "Logon credentials rejected: " + err.Error(),
				}, nil
			}
		}

		if resetRequested {
			if err := ctx.ResetSequences(); err != nil {
				return nil, err
			}
		}

		heartBtInt, _ := msg.GetInt(message.TagHeartBtInt)
		response := message.New()
		response.SetString(message.TagMsgType, message.MsgTypeLogon)
		response.SetInt(message.TagEncryptMethod, 0)
		response.SetInt(message.TagHeartBtInt, heartBtInt)
		if resetRequested {
			response.SetString(message.TagResetSeqNumFlag, "Y")
		}
		if err := ctx.Send(response); err != nil {
			return nil, err
		}

		if err := ctx.ActivateSession(time.Duration(heartBtInt) * time.Second); err != nil {
			return nil, err
		}
		return ok(), nil
	}

	// Initiator side: this is the acceptor's Logon response.
	if resetRequested {
		heartBtInt, _ := msg.GetInt(message.TagHeartBtInt)
		if err := ctx.ActivateSession(time.Duration(heartBtInt) * time.Second); err != nil {
			return nil, err
		}
		return ok(), nil
	}

	next := ctx.NextIncoming()
	switch {
	case seq == next:
		heartBtInt, _ := msg.GetInt(message.TagHeartBtInt)
		if err := ctx.ActivateSession(time.Duration(heartBtInt) * time.Second); err != nil {
			return nil, err
		}
		return ok(), nil

	case seq > next:
		// Accept the logon, then immediately request the gap rather than
		// rejecting outright: a higher sequence number without a reset flag
		// means messages were missed, not that the session is corrupt.
		resendReq := message.New()
		resendReq.SetString(message.TagMsgType, message.MsgTypeResendRequest)
		resendReq.SetInt(message.TagBeginSeqNo, next)
		resendReq.SetInt(message.TagEndSeqNo, seq-1)
		if err := ctx.Send(resendReq); err != nil {
			return nil, err
		}
		heartBtInt, _ := msg.GetInt(message.TagHeartBtInt)
		if err := ctx.ActivateSession(time.Duration(heartBtInt) * time.Second); err != nil {
			return nil, err
		}
		return ok(), nil

	default: // seq < next: FIX rule is to disconnect.
		return &Result{
			Outcome:    LogoutAndDisconnect,
			LogoutText: "Logon MsgSeqNum lower than expected",
		}, nil
	}
}
