package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/fixengine/pkg/handlers"
	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/statemachine"
)

// handleInboundRaw implements the inbound pipeline for one framed
// message: parse, validate header, check MsgSeqNum against nextIncoming,
// persist, dispatch, and update the heartbeat monitor's last-received mark.
// Only ever called from Run's owning goroutine.
func (s *Session) handleInboundRaw(raw []byte) error {
	parsed, err := s.codec.Decode(raw)
	if err != nil {
		if sendErr := s.sendReject(0, 0, "message parsing failed: "+err.Error()); sendErr != nil {
			return sendErr
		}
		return nil
	}

	if err := s.validateHeader(parsed); err != nil {
		return s.fatalHeaderMismatch(err)
	}

	seq, ok := parsed.MsgSeqNum()
	if !ok {
		return s.sendReject(0, message.TagMsgSeqNum, "missing MsgSeqNum (34)")
	}

	now := time.Now()

	switch {
	case seq == s.nextIncoming:
		if err := s.persistInbound(raw, seq, now); err != nil {
			return err
		}
		if err := s.dispatchAndAdvance(parsed); err != nil {
			return err
		}

	case seq > s.nextIncoming:
		s.metrics.RecordSequenceGap(s.sessionID.String())
		if err := s.persistInbound(raw, seq, now); err != nil {
			return err
		}
		switch parsed.MsgType() {
		case message.MsgTypeLogon:
			// HandleLogon owns the higher-seq decision itself (accept
			// then request the gap, or activate unconditionally on 141=Y) —
			// the engine must not also emit its own ResendRequest here.
			if err := s.dispatchOnly(parsed); err != nil {
				return err
			}
		case message.MsgTypeLogout, message.MsgTypeSequenceReset:
			if err := s.sendResendRequest(s.nextIncoming, seq-1); err != nil {
				return err
			}
			if err := s.dispatchOnly(parsed); err != nil {
				return err
			}
		default:
			if err := s.sendResendRequest(s.nextIncoming, seq-1); err != nil {
				return err
			}
			// queued pending the gap fill; not dispatched, nextIncoming unchanged.
		}

	case parsed.IsPossDup():
		// PossDup messages bypass the equality check for
		// their declared resend range and are delivered without moving
		// nextIncoming.
		if err := s.persistInbound(raw, seq, now); err != nil {
			return err
		}
		if err := s.dispatchOnly(parsed); err != nil {
			return err
		}

	default:
		return s.fatalSequenceDecrease(seq)
	}

	if s.hb != nil {
		s.hb.Received()
	}
	return nil
}

func (s *Session) persistInbound(raw []byte, seq int, now time.Time) error {
	start := time.Now()
	err := s.st.Store(context.Background(), s.sessionID, seq, raw, message.Inbound, now)
	s.metrics.RecordStoreOp("store_inbound", time.Since(start), err)
	if err != nil {
		return &SessionError{Kind: StoreErrorKind, Message: "persist inbound message", Cause: err}
	}
	return nil
}

// dispatchAndAdvance is used for the seq == nextIncoming path: it runs the
// handler, then advances nextIncoming by one — unless the handler is an
// accepted SequenceReset, which sets nextIncoming explicitly via
// SetNextIncoming and whose value must not be further adjusted. A rejected
// SequenceReset advances like any other message.
func (s *Session) dispatchAndAdvance(parsed *message.Message) error {
	result, err := s.table.Dispatch(contextAdapter{s}, parsed)
	if err != nil {
		return &SessionError{Kind: ProtocolViolationRecoverable, Message: "dispatch", Cause: err}
	}
	if parsed.MsgType() != message.MsgTypeSequenceReset || result.Outcome == handlers.RejectAndContinue {
		s.nextIncoming++
	}
	return s.applyResult(result, parsed)
}

// dispatchOnly runs the handler without touching nextIncoming; used for the
// gap-bypass and PossDup-replay paths where the handler itself (or nothing)
// is responsible for any sequence-counter change.
func (s *Session) dispatchOnly(parsed *message.Message) error {
	result, err := s.table.Dispatch(contextAdapter{s}, parsed)
	if err != nil {
		return &SessionError{Kind: ProtocolViolationRecoverable, Message: "dispatch", Cause: err}
	}
	return s.applyResult(result, parsed)
}

// applyResult translates a handler Result into wire effects, following its
// "handlers signal outcomes by returning a result; the engine translates
// result variants into one of: continue, reject-and-continue,
// logout-and-disconnect, force-disconnect."
func (s *Session) applyResult(result *handlers.Result, parsed *message.Message) error {
	switch result.Outcome {
	case handlers.Continue:
		return nil

	case handlers.RejectAndContinue:
		seq, _ := parsed.MsgSeqNum()
		reject := message.New()
		reject.SetString(message.TagMsgType, message.MsgTypeReject)
		reject.SetInt(message.TagRefSeqNum, seq)
		if result.RefTagID != 0 {
			reject.SetInt(message.TagRefTagID, result.RefTagID)
		}
		if result.SessionRejectReason != 0 {
			reject.SetInt(message.TagSessionRejectReason, result.SessionRejectReason)
		}
		if result.Text != "" {
			reject.SetString(message.TagText, result.Text)
		}
		return s.rawSend(reject)

	case handlers.LogoutAndDisconnect:
		logout := message.New()
		logout.SetString(message.TagMsgType, message.MsgTypeLogout)
		if result.LogoutText != "" {
			logout.SetString(message.TagText, result.LogoutText)
		}
		_ = s.rawSend(logout)
		return s.sm.Transition(statemachine.Disconnected)

	case handlers.ForceDisconnect:
		return s.sm.Transition(statemachine.Disconnected)

	default:
		return nil
	}
}

func (s *Session) sendReject(seq, tag int, text string) error {
	reject := message.New()
	reject.SetString(message.TagMsgType, message.MsgTypeReject)
	if seq != 0 {
		reject.SetInt(message.TagRefSeqNum, seq)
	}
	if tag != 0 {
		reject.SetInt(message.TagRefTagID, tag)
	}
	reject.SetString(message.TagText, text)
	return s.rawSend(reject)
}

func (s *Session) sendResendRequest(begin, end int) error {
	msg := message.New()
	msg.SetString(message.TagMsgType, message.MsgTypeResendRequest)
	msg.SetInt(message.TagBeginSeqNo, begin)
	msg.SetInt(message.TagEndSeqNo, end)
	return s.rawSend(msg)
}

// validateHeader checks BeginString/SenderCompID/TargetCompID against the
// session identity, as seen from the receiving side (the peer's
// SenderCompID must equal our TargetCompID and vice versa).
func (s *Session) validateHeader(parsed *message.Message) error {
	beginString := parsed.GetString(message.TagBeginString)
	if beginString != s.cfg.BeginString {
		return fmt.Errorf("BeginString mismatch: got %q, want %q", beginString, s.cfg.BeginString)
	}
	peerSender := parsed.GetString(message.TagSenderCompID)
	if peerSender != s.cfg.TargetCompID {
		return fmt.Errorf("SenderCompID mismatch: got %q, want %q", peerSender, s.cfg.TargetCompID)
	}
	peerTarget := parsed.GetString(message.TagTargetCompID)
	if peerTarget != s.cfg.SenderCompID {
		return fmt.Errorf("TargetCompID mismatch: got %q, want %q", peerTarget, s.cfg.SenderCompID)
	}
	return nil
}

func (s *Session) fatalHeaderMismatch(cause error) error {
	logout := message.New()
	logout.SetString(message.TagMsgType, message.MsgTypeLogout)
	logout.SetString(message.TagText, cause.Error())
	_ = s.rawSend(logout)
	if err := s.sm.Transition(statemachine.Disconnected); err != nil {
		return err
	}
	return &SessionError{Kind: ProtocolViolationFatal, Message: "header validation failed", Cause: cause}
}

func (s *Session) fatalSequenceDecrease(seq int) error {
	logout := message.New()
	logout.SetString(message.TagMsgType, message.MsgTypeLogout)
	logout.SetString(message.TagText, "MsgSeqNum too low, expecting "+fmt.Sprint(s.nextIncoming)+" but received "+fmt.Sprint(seq))
	_ = s.rawSend(logout)
	if err := s.sm.Transition(statemachine.Disconnected); err != nil {
		return err
	}
	return &SessionError{Kind: ProtocolViolationFatal, Message: "sequence number decrease without PossDup"}
}
