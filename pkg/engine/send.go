package engine

import (
	"context"
	"time"

	"github.com/marmos91/fixengine/pkg/heartbeat"
	"github.com/marmos91/fixengine/pkg/message"
)

// rawSend stamps session header fields, assigns the next outbound sequence
// number, persists, and writes msg to the wire — in that order, since
// persistence must precede transmission (an ordering guarantee: a
// message that reaches the peer but isn't in the store would break resend).
// Must only be called from the session's owning goroutine.
func (s *Session) rawSend(msg *message.Message) error {
	return s.sendAt(msg, s.nextOutgoing, true)
}

// rawSendAt stamps and transmits msg with an explicit MsgSeqNum instead of
// the next fresh outbound one, and does not advance nextOutgoing. It is the
// resend path: replaying a stored message, or a SequenceReset-GapFill, must
// go out at the sequence number the peer is actually expecting rather than
// consuming a new one.
func (s *Session) rawSendAt(msg *message.Message, seq int) error {
	return s.sendAt(msg, seq, false)
}

func (s *Session) sendAt(msg *message.Message, seq int, advance bool) error {
	now := time.Now()

	msg.SetString(message.TagBeginString, s.cfg.BeginString)
	msg.SetString(message.TagSenderCompID, s.cfg.SenderCompID)
	msg.SetString(message.TagTargetCompID, s.cfg.TargetCompID)
	msg.SetInt(message.TagMsgSeqNum, seq)
	msg.SetString(message.TagSendingTime, now.UTC().Format("20060102-15:04:05.000"))

	raw, err := s.codec.Encode(msg)
	if err != nil {
		return &SessionError{Kind: ProtocolViolationRecoverable, Message: "encode outbound message", Cause: err}
	}

	storeStart := time.Now()
	storeErr := s.st.Store(context.Background(), s.sessionID, seq, raw, message.Outbound, now)
	s.metrics.RecordStoreOp("store_outbound", time.Since(storeStart), storeErr)
	if storeErr != nil {
		return &SessionError{Kind: StoreErrorKind, Message: "persist outbound message", Cause: storeErr}
	}

	if _, err := s.conn.Write(raw); err != nil {
		return &SessionError{Kind: TransportError, Message: "write outbound message", Cause: err}
	}

	if advance {
		s.nextOutgoing = seq + 1
	}
	if s.hb != nil {
		s.hb.Sent()
	}
	return nil
}

func (s *Session) newHeartbeatMonitor(interval time.Duration) *heartbeat.Monitor {
	return heartbeat.New(interval, heartbeat.Callbacks{
		SendHeartbeat:   func(testReqID string) { s.enqueueHeartbeat(testReqID) },
		SendTestRequest: func(testReqID string) { s.enqueueTestRequest(testReqID) },
		OnTimeout:       s.enqueueHeartbeatTimeout,
	})
}

// enqueueHeartbeat/enqueueTestRequest/enqueueHeartbeatTimeout run on the
// heartbeat monitor's own timer goroutines; they must hop onto the session's
// owning goroutine via enqueue before touching any session state.
func (s *Session) enqueueHeartbeat(testReqID string) {
	s.enqueue(func() {
		msg := message.New()
		msg.SetString(message.TagMsgType, message.MsgTypeHeartbeat)
		if testReqID != "" {
			msg.SetString(message.TagTestReqID, testReqID)
		}
		_ = s.rawSend(msg)
	})
}

func (s *Session) enqueueTestRequest(testReqID string) {
	s.enqueue(func() {
		msg := message.New()
		msg.SetString(message.TagMsgType, message.MsgTypeTestRequest)
		msg.SetString(message.TagTestReqID, testReqID)
		_ = s.rawSend(msg)
	})
}

func (s *Session) enqueueHeartbeatTimeout() {
	s.enqueue(func() {
		s.handleTransportError(&SessionError{Kind: Timeout, Message: "TestRequest unanswered, peer presumed dead"})
	})
}
