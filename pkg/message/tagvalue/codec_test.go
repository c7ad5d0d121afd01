package tagvalue

import (
	"testing"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLogon() *message.Message {
	m := message.New()
	m.SetString(message.TagBeginString, "FIX.4.4")
	m.SetInt(message.TagMsgType, 0)
	m.SetString(message.TagMsgType, "A")
	m.SetInt(message.TagMsgSeqNum, 1)
	m.SetString(message.TagSenderCompID, "BANZAI")
	m.SetString(message.TagTargetCompID, "EXEC")
	m.SetString(message.TagSendingTime, "20260730-12:00:00.000")
	m.SetInt(message.TagEncryptMethod, 0)
	m.SetInt(message.TagHeartBtInt, 30)
	m.SetString(message.TagResetSeqNumFlag, "Y")
	return m
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := New()
	m := buildLogon()

	raw, err := c.Encode(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "8=FIX.4.4\x01")
	assert.Contains(t, string(raw), "35=A\x01")

	decoded, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "A", decoded.MsgType())
	seq, ok := decoded.MsgSeqNum()
	require.True(t, ok)
	assert.Equal(t, 1, seq)
	assert.Equal(t, "Y", decoded.GetString(message.TagResetSeqNumFlag))
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	c := New()
	raw, err := c.Encode(buildLogon())
	require.NoError(t, err)

	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-5] = '9' // corrupt a checksum digit

	_, err = c.Decode(tampered)
	require.Error(t, err)
	var cerr *message.CodecError
	require.ErrorAs(t, err, &cerr)
}

func TestDecodeRejectsBadBodyLength(t *testing.T) {
	c := New()
	tampered := []byte("8=FIX.4.4\x019=999\x0135=A\x0110=000\x01")
	_, err := c.Decode(tampered)
	require.Error(t, err)
}
