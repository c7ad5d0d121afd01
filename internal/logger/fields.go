package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying across sessions.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // Correlation ID for request tracing
	KeySpanID  = "span_id"  // Span ID for operation tracking

	// ========================================================================
	// Session Identity
	// ========================================================================
	KeyBeginString   = "begin_string"    // FIX BeginString (tag 8)
	KeySenderCompID  = "sender_comp_id"  // SenderCompID (tag 49)
	KeyTargetCompID  = "target_comp_id"  // TargetCompID (tag 56)
	KeySessionID     = "session_id"      // Composite session identifier
	KeyConnectionID  = "connection_id"   // TCP connection identifier
	KeyClientIP      = "client_ip"       // Remote address
	KeyRole          = "role"            // initiator or acceptor

	// ========================================================================
	// Message Fields
	// ========================================================================
	KeyMsgType      = "msg_type"       // MsgType (tag 35)
	KeyMsgSeqNum    = "msg_seq_num"    // MsgSeqNum (tag 34)
	KeyDirection    = "direction"      // inbound or outbound
	KeyPossDup      = "poss_dup"       // PossDupFlag (tag 43)
	KeyRefSeqNum    = "ref_seq_num"    // RefSeqNum (tag 45), used in Reject
	KeyBeginSeqNo   = "begin_seq_no"   // BeginSeqNo (tag 7), ResendRequest
	KeyEndSeqNo     = "end_seq_no"     // EndSeqNo (tag 16), ResendRequest
	KeyNewSeqNo     = "new_seq_no"     // NewSeqNo (tag 36), SequenceReset
	KeyTestReqID    = "test_req_id"    // TestReqID (tag 112)
	KeyHeartBtInt   = "heart_bt_int"   // HeartBtInt (tag 108)

	// ========================================================================
	// Session State
	// ========================================================================
	KeyOldState = "old_state" // Previous SessionState
	KeyNewState = "new_state" // New SessionState
	KeyEvent    = "event"     // State machine event name

	// ========================================================================
	// Store
	// ========================================================================
	KeyStoreType = "store_type" // memory, file, sqlite, postgres
	KeyStorePath = "store_path" // backing-store location

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric/enum error code
	KeyAttempt    = "attempt"     // Reconnect attempt number
	KeyMaxRetries = "max_retries" // Maximum reconnect attempts
)

// SessionID returns a slog.Attr for the composite session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// MsgType returns a slog.Attr for the FIX MsgType.
func MsgType(t string) slog.Attr {
	return slog.String(KeyMsgType, t)
}

// MsgSeqNum returns a slog.Attr for MsgSeqNum.
func MsgSeqNum(n int) slog.Attr {
	return slog.Int(KeyMsgSeqNum, n)
}

// Direction returns a slog.Attr for message direction.
func Direction(d string) slog.Attr {
	return slog.String(KeyDirection, d)
}

// ClientIP returns a slog.Attr for the remote address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Err returns a slog.Attr for an error value's message.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// OldState returns a slog.Attr for the previous session state.
func OldState(s string) slog.Attr {
	return slog.String(KeyOldState, s)
}

// NewState returns a slog.Attr for the new session state.
func NewState(s string) slog.Attr {
	return slog.String(KeyNewState, s)
}
