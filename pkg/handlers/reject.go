package handlers

import (
	"github.com/marmos91/fixengine/internal/logger"
	"github.com/marmos91/fixengine/pkg/message"
)

// HandleReject implements Reject handling: log for audit, never retransmit.
func HandleReject(ctx Context, msg *message.Message) (*Result, error) {
	refSeqNum, _ := msg.GetInt(message.TagRefSeqNum)
	logger.Warn("received Reject from peer",
		logger.SessionID(ctx.SessionID().String()),
		logger.KeyRefSeqNum, refSeqNum,
		logger.MsgType(msg.MsgType()),
	)
	return ok(), nil
}
