// Package dispatch implements a MsgType-keyed registry of
// pkg/handlers.Handler values. Unregistered MsgTypes — anything that isn't
// one of the seven administrative message types — route to the application
// callback instead of failing.
//
// A table assembled once at construction time, keyed by message type, with
// an explicit fallback path for anything the table doesn't cover.
package dispatch

import (
	"fmt"

	"github.com/marmos91/fixengine/pkg/handlers"
	"github.com/marmos91/fixengine/pkg/message"
)

// Table maps MsgType to the Handler responsible for it.
type Table struct {
	handlers map[string]handlers.Handler
}

// New returns a Table pre-populated with the seven administrative handlers.
// Additional entries (for application-defined MsgTypes the engine should
// intercept rather than forward) can be added with Register.
func New() *Table {
	t := &Table{handlers: make(map[string]handlers.Handler)}
	t.Register(message.MsgTypeLogon, handlers.HandleLogon)
	t.Register(message.MsgTypeLogout, handlers.HandleLogout)
	t.Register(message.MsgTypeHeartbeat, handlers.HandleHeartbeat)
	t.Register(message.MsgTypeTestRequest, handlers.HandleTestRequest)
	t.Register(message.MsgTypeResendRequest, handlers.HandleResendRequest)
	t.Register(message.MsgTypeSequenceReset, handlers.HandleSequenceReset)
	t.Register(message.MsgTypeReject, handlers.HandleReject)
	return t
}

// Register installs or replaces the handler for msgType.
func (t *Table) Register(msgType string, h handlers.Handler) {
	t.handlers[msgType] = h
}

// Lookup returns the handler registered for msgType, if any.
func (t *Table) Lookup(msgType string) (handlers.Handler, bool) {
	h, ok := t.handlers[msgType]
	return h, ok
}

// Dispatch routes msg to its registered handler. MsgTypes with no
// registered handler are forwarded to ctx.DeliverToApplication and treated
// as Continue — they are not a protocol violation, just none of this
// engine's business.
func (t *Table) Dispatch(ctx handlers.Context, msg *message.Message) (*handlers.Result, error) {
	h, ok := t.Lookup(msg.MsgType())
	if !ok {
		ctx.DeliverToApplication(msg)
		return &handlers.Result{Outcome: handlers.Continue}, nil
	}
	result, err := h(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", msg.MsgType(), err)
	}
	return result, nil
}
