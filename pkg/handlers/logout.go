package handlers

import "github.com/marmos91/fixengine/pkg/message"

// HandleLogout implements Logout handling: reply-and-wind-down when the peer
// initiates, or complete the handshake when this side already sent its own
// Logout and the message is the confirmation.
func HandleLogout(ctx Context, msg *message.Message) (*Result, error) {
	if ctx.LogoutInProgress() {
		ctx.SignalLogoutReceived()
		if err := ctx.Disconnect(true); err != nil {
			return nil, err
		}
		return ok(), nil
	}

	response := message.New()
	response.SetString(message.TagMsgType, message.MsgTypeLogout)
	if err := ctx.Send(response); err != nil {
		return nil, err
	}
	ctx.SignalLogoutReceived()
	if err := ctx.Disconnect(true); err != nil {
		return nil, err
	}
	return ok(), nil
}
