package handlers

import "github.com/marmos91/fixengine/pkg/message"

// sessionRejectReasonValueOutOfRange is FIX tag 373's "Value is incorrect
// (out of range) for this tag" reason code, used when rejecting a
// SequenceReset that would decrease nextIncoming.
const sessionRejectReasonValueOutOfRange = 5

// HandleSequenceReset implements SequenceReset handling, covering both the
// GapFill (123=Y) and admin-reset forms with the shared decrease-rejection
// decrease-without-PossDup rejection rule.
func HandleSequenceReset(ctx Context, msg *message.Message) (*Result, error) {
	newSeqNo, present := msg.GetInt(message.TagNewSeqNo)
	if !present {
		return &Result{
			Outcome:             RejectAndContinue,
			RefTagID:            message.TagNewSeqNo,
			SessionRejectReason: sessionRejectReasonValueOutOfRange,
			Text:                "SequenceReset missing NewSeqNo",
		}, nil
	}

	current := ctx.NextIncoming()
	gapFill := msg.GetString(message.TagGapFillFlag) == "Y"

	if newSeqNo < current {
		if msg.IsPossDup() {
			return ok(), nil
		}
		return &Result{
			Outcome:             RejectAndContinue,
			RefTagID:            message.TagNewSeqNo,
			SessionRejectReason: sessionRejectReasonValueOutOfRange,
			Text:                "Sequence Reset attempted to decrease sequence number",
		}, nil
	}

	if newSeqNo == current && gapFill && msg.IsPossDup() {
		return ok(), nil
	}

	if err := ctx.SetNextIncoming(newSeqNo); err != nil {
		return nil, err
	}
	return ok(), nil
}
