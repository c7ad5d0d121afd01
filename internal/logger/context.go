package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single FIX session.
type LogContext struct {
	TraceID      string    // Correlation ID for request tracing
	SpanID       string    // Span ID for operation tracking
	SessionID    string    // Composite (BeginString, SenderCompID, TargetCompID)
	ConnectionID string    // TCP connection identifier
	ClientIP     string    // Remote address (without port)
	MsgType      string    // Current MsgType being processed
	StartTime    time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:      lc.TraceID,
		SpanID:       lc.SpanID,
		SessionID:    lc.SessionID,
		ConnectionID: lc.ConnectionID,
		ClientIP:     lc.ClientIP,
		MsgType:      lc.MsgType,
		StartTime:    lc.StartTime,
	}
}

// WithSessionID returns a copy with the session ID set
func (lc *LogContext) WithSessionID(sessionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
	}
	return clone
}

// WithMsgType returns a copy with the MsgType set
func (lc *LogContext) WithMsgType(msgType string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.MsgType = msgType
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
