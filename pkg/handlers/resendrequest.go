package handlers

import (
	"context"

	"github.com/marmos91/fixengine/pkg/message"
)

// adminMsgTypes are never resent verbatim; a gap over one or more of them is
// coalesced into a single SequenceReset-GapFill.
var adminMsgTypes = map[string]bool{
	message.MsgTypeHeartbeat:     true,
	message.MsgTypeTestRequest:   true,
	message.MsgTypeResendRequest: true,
	message.MsgTypeReject:        true,
	message.MsgTypeSequenceReset: true,
	message.MsgTypeLogon:         true,
	message.MsgTypeLogout:        true,
}

// HandleResendRequest implements ResendRequest handling: replays resendable
// application messages with PossDupFlag(43)=Y, and coalesces runs of
// administrative or missing messages into the widest possible
// SequenceReset-GapFill.
func HandleResendRequest(ctx Context, msg *message.Message) (*Result, error) {
	begin, _ := msg.GetInt(message.TagBeginSeqNo)
	end, _ := msg.GetInt(message.TagEndSeqNo)
	if end == 0 {
		end = ctx.NextOutgoing() - 1
	}
	if begin <= 0 || end < begin {
		return ok(), nil
	}

	ctxBg := context.Background()
	sid := ctx.SessionID()

	gapStart := 0
	flushGap := func(upToExclusive int) error {
		if gapStart == 0 {
			return nil
		}
		reset := message.New()
		reset.SetString(message.TagMsgType, message.MsgTypeSequenceReset)
		reset.SetString(message.TagGapFillFlag, "Y")
		reset.SetString(message.TagPossDupFlag, "Y")
		reset.SetInt(message.TagNewSeqNo, upToExclusive)
		if err := ctx.SendAtSeq(reset, gapStart); err != nil {
			return err
		}
		gapStart = 0
		return nil
	}

	for seq := begin; seq <= end; seq++ {
		rec, err := ctx.Store().Get(ctxBg, sid, seq, message.Outbound)
		if err != nil {
			if gapStart == 0 {
				gapStart = seq
			}
			continue
		}

		parsed, err := ctx.Codec().Decode(rec.RawBytes)
		if err != nil || adminMsgTypes[parsed.MsgType()] {
			if gapStart == 0 {
				gapStart = seq
			}
			continue
		}

		if err := flushGap(seq); err != nil {
			return nil, err
		}

		parsed.SetString(message.TagPossDupFlag, "Y")
		if origSending := parsed.GetString(message.TagSendingTime); origSending != "" {
			parsed.SetString(message.TagOrigSendingTime, origSending)
		}
		if err := ctx.SendAtSeq(parsed, seq); err != nil {
			return nil, err
		}
	}

	if err := flushGap(end + 1); err != nil {
		return nil, err
	}

	return ok(), nil
}
