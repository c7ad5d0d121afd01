package handlers

import "github.com/marmos91/fixengine/pkg/message"

// HandleHeartbeat implements Heartbeat handling: record inbound activity and,
// if it carries TestReqID(112), clear a matching outstanding TestRequest.
func HandleHeartbeat(ctx Context, msg *message.Message) (*Result, error) {
	ctx.NoteReceived()

	if testReqID := msg.GetString(message.TagTestReqID); testReqID != "" {
		if testReqID == ctx.PendingTestReqID() {
			ctx.ClearPendingTestReqID()
		}
	}
	return ok(), nil
}
