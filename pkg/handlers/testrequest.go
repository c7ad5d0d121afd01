package handlers

import "github.com/marmos91/fixengine/pkg/message"

// HandleTestRequest implements TestRequest handling: immediately echo a
// Heartbeat carrying the same TestReqID(112).
func HandleTestRequest(ctx Context, msg *message.Message) (*Result, error) {
	response := message.New()
	response.SetString(message.TagMsgType, message.MsgTypeHeartbeat)
	if id := msg.GetString(message.TagTestReqID); id != "" {
		response.SetString(message.TagTestReqID, id)
	}
	if err := ctx.Send(response); err != nil {
		return nil, err
	}
	return ok(), nil
}
