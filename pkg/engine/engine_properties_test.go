package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fixengine/pkg/engine"
	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/message/tagvalue"
	"github.com/marmos91/fixengine/pkg/store"
	"github.com/marmos91/fixengine/pkg/store/memory"
)

// Property: monotonic outbound sequence numbers. Every message rawSend
// writes carries exactly one more than the last, with no gaps or repeats.
func TestPropertyMonotonicOutboundSequence(t *testing.T) {
	h := newPipeHarness(t)
	cfg := baseConfig()
	cfg.ResetSeqNumOnLogon = true
	s, err := engine.Create(cfg, engine.Callbacks{}, h.st, h.codec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run(ctx, h.clientConn) }()

	var lastSeq int
	for i := 0; i < 5; i++ {
		msg := h.peerRead(t)
		seq, ok := msg.MsgSeqNum()
		require.True(t, ok)
		if i > 0 {
			assert.Equal(t, lastSeq+1, seq)
		}
		lastSeq = seq

		switch i {
		case 0:
			response := message.New()
			response.SetString(message.TagMsgType, message.MsgTypeLogon)
			response.SetInt(message.TagHeartBtInt, 30)
			response.SetInt(message.TagMsgSeqNum, 1)
			response.SetString(message.TagResetSeqNumFlag, "Y")
			h.peerSend(t, response)
		default:
			tr := message.New()
			tr.SetString(message.TagMsgType, message.MsgTypeTestRequest)
			tr.SetString(message.TagTestReqID, "probe")
			tr.SetInt(message.TagMsgSeqNum, i+1)
			h.peerSend(t, tr)
		}
	}

	cancel()
	<-runErrCh
}

// Property: persistence precedes transmission. Every outbound message is
// recorded in the store with a seq strictly less than or equal to what was
// actually written to the wire at the moment the peer observes it — proven
// here by checking the store already has the record for a seq number the
// test has just read off the wire, before sending any reply that would let
// the session proceed further.
func TestPropertyPersistencePrecedesTransmission(t *testing.T) {
	h := newPipeHarness(t)
	cfg := baseConfig()
	s, err := engine.Create(cfg, engine.Callbacks{}, h.st, h.codec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run(ctx, h.clientConn) }()

	logonReq := h.peerRead(t)
	seq, _ := logonReq.MsgSeqNum()

	record, err := h.st.Get(context.Background(), cfg.SessionID(), seq, message.Outbound)
	require.NoError(t, err)
	assert.Equal(t, message.Outbound, record.Direction)

	cancel()
	<-runErrCh
}

// Property: gapless inbound delivery. A message arriving above nextIncoming
// is never dispatched to the application; nextIncoming only advances past a
// gap once the gap is filled.
func TestPropertyGaplessInboundDelivery(t *testing.T) {
	h := newPipeHarness(t)
	cfg := baseConfig()

	var delivered []int
	s, err := engine.Create(cfg, engine.Callbacks{
		OnMessageFromApp: func(msg *message.Message, sessionID message.SessionID) {
			seq, _ := msg.MsgSeqNum()
			delivered = append(delivered, seq)
		},
	}, h.st, h.codec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run(ctx, h.clientConn) }()

	_ = h.peerRead(t) // Logon

	response := message.New()
	response.SetString(message.TagMsgType, message.MsgTypeLogon)
	response.SetInt(message.TagHeartBtInt, 30)
	response.SetInt(message.TagMsgSeqNum, 1)
	h.peerSend(t, response)

	// Skip seq 2, send application message at seq 3 directly: the engine
	// must detect the gap and request a resend rather than deliver it.
	gapMsg := message.New()
	gapMsg.SetString(message.TagMsgType, "D")
	gapMsg.SetInt(message.TagMsgSeqNum, 3)
	h.peerSend(t, gapMsg)

	resendReq := h.peerRead(t)
	assert.Equal(t, message.MsgTypeResendRequest, resendReq.MsgType())
	begin, _ := resendReq.GetInt(message.TagBeginSeqNo)
	end, _ := resendReq.GetInt(message.TagEndSeqNo)
	assert.Equal(t, 2, begin)
	assert.Equal(t, 2, end)

	assert.Empty(t, delivered, "gap-blocked message must never reach the application")

	// Fill the gap: seq 2 arrives with PossDup, then the original seq 3
	// replays as a fresh, in-order message.
	fill := message.New()
	fill.SetString(message.TagMsgType, "D")
	fill.SetInt(message.TagMsgSeqNum, 2)
	fill.SetString(message.TagPossDupFlag, "Y")
	h.peerSend(t, fill)

	replay := message.New()
	replay.SetString(message.TagMsgType, "D")
	replay.SetInt(message.TagMsgSeqNum, 3)
	h.peerSend(t, replay)

	require.Eventually(t, func() bool { return len(delivered) >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2, 3}, delivered)

	cancel()
	<-runErrCh
}

// Property: state-gated sends. The public Send API only succeeds once the
// session has reached Active.
func TestPropertySendGatedByState(t *testing.T) {
	h := newPipeHarness(t)
	cfg := baseConfig()
	var loggedOn bool
	s, err := engine.Create(cfg, engine.Callbacks{
		OnLogon: func(sessionID message.SessionID) { loggedOn = true },
	}, h.st, h.codec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run(ctx, h.clientConn) }()

	_ = h.peerRead(t) // Logon

	appMsg := message.New()
	appMsg.SetString(message.TagMsgType, "D")
	require.Error(t, s.Send(appMsg))

	response := message.New()
	response.SetString(message.TagMsgType, message.MsgTypeLogon)
	response.SetInt(message.TagHeartBtInt, 30)
	response.SetInt(message.TagMsgSeqNum, 1)
	h.peerSend(t, response)

	require.Eventually(t, func() bool { return loggedOn }, time.Second, 5*time.Millisecond)

	appMsg2 := message.New()
	appMsg2.SetString(message.TagMsgType, "D")
	// net.Pipe is synchronous: Send returns only once the peer has read it.
	sendErrCh := make(chan error, 1)
	go func() { sendErrCh <- s.Send(appMsg2) }()

	sent := h.peerRead(t)
	assert.Equal(t, "D", sent.MsgType())
	require.NoError(t, <-sendErrCh)

	cancel()
	<-runErrCh
}

// Property: heartbeat bound. With no application traffic, a Heartbeat is
// emitted within roughly one negotiated interval of the last send.
func TestPropertyHeartbeatBound(t *testing.T) {
	h := newPipeHarness(t)
	cfg := baseConfig()
	s, err := engine.Create(cfg, engine.Callbacks{}, h.st, h.codec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run(ctx, h.clientConn) }()

	_ = h.peerRead(t) // Logon

	// Negotiating HeartBtInt(108)=1 arms the outbound timer at one second,
	// ahead of the inbound watchdog's 1.2s, so the first message is the
	// Heartbeat rather than a TestRequest, without waiting out a long interval.
	response := message.New()
	response.SetString(message.TagMsgType, message.MsgTypeLogon)
	response.SetInt(message.TagHeartBtInt, 1)
	response.SetInt(message.TagMsgSeqNum, 1)
	h.peerSend(t, response)

	hbMsg := h.peerRead(t)
	assert.Equal(t, message.MsgTypeHeartbeat, hbMsg.MsgType())

	cancel()
	<-runErrCh
}

// Property: codec round-trip. Encoding then decoding any message built from
// the handlers in this package yields identical field values.
func TestPropertyCodecRoundTrip(t *testing.T) {
	codec := tagvalue.New()
	msg := message.New()
	msg.SetString(message.TagMsgType, message.MsgTypeLogon)
	msg.SetString(message.TagSenderCompID, "BANZAI")
	msg.SetString(message.TagTargetCompID, "EXEC")
	msg.SetInt(message.TagMsgSeqNum, 42)
	msg.SetString(message.TagBeginString, "FIX.4.4")

	raw, err := codec.Encode(msg)
	require.NoError(t, err)

	decoded, err := codec.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, msg.MsgType(), decoded.MsgType())
	assert.Equal(t, msg.GetString(message.TagSenderCompID), decoded.GetString(message.TagSenderCompID))
	assert.Equal(t, msg.GetString(message.TagTargetCompID), decoded.GetString(message.TagTargetCompID))
	seq, _ := msg.MsgSeqNum()
	decodedSeq, _ := decoded.MsgSeqNum()
	assert.Equal(t, seq, decodedSeq)
}

var _ store.Store = (*memory.Store)(nil)
