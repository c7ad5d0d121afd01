package storetest

import (
	"testing"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/message/tagvalue"
)

func runRangeTests(t *testing.T, factory StoreFactory) {
	t.Run("RangeReturnsAscendingBySeqNum", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 3, "c", message.Outbound)
		mustStore(t, s, sid, 1, "a", message.Outbound)
		mustStore(t, s, sid, 2, "b", message.Outbound)

		recs, err := s.Range(t.Context(), sid, message.Outbound, 1, 3)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(recs) != 3 {
			t.Fatalf("Range returned %d records, want 3", len(recs))
		}
		for i, want := range []string{"a", "b", "c"} {
			if string(recs[i].RawBytes) != want {
				t.Fatalf("Range[%d] = %q, want %q (ascending order)", i, recs[i].RawBytes, want)
			}
		}
	})

	t.Run("RangeToSeqZeroMeansThroughLatest", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "a", message.Outbound)
		mustStore(t, s, sid, 2, "b", message.Outbound)
		mustStore(t, s, sid, 3, "c", message.Outbound)

		recs, err := s.Range(t.Context(), sid, message.Outbound, 2, 0)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("Range(2, 0) returned %d records, want 2 (seq 2 and 3)", len(recs))
		}
		if string(recs[len(recs)-1].RawBytes) != "c" {
			t.Fatalf("Range(2, 0) did not reach the latest stored record")
		}
	})

	t.Run("RangeSkipsGaps", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "a", message.Outbound)
		mustStore(t, s, sid, 3, "c", message.Outbound)

		recs, err := s.Range(t.Context(), sid, message.Outbound, 1, 3)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("Range over a gap returned %d records, want 2 (gap at seq 2 silently skipped)", len(recs))
		}
	})

	t.Run("RangeOnEmptyDirectionIsEmpty", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		recs, err := s.Range(t.Context(), sid, message.Inbound, 1, 0)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(recs) != 0 {
			t.Fatalf("Range on a session with no history returned %d records, want 0", len(recs))
		}
	})

	t.Run("FindByFieldMatchesDecodedValue", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()
		codec := tagvalue.New()

		wanted := message.New()
		wanted.SetString(message.TagBeginString, sid.BeginString)
		wanted.SetInt(message.TagMsgSeqNum, 1)
		wanted.SetString(message.TagMsgType, message.MsgTypeTestRequest)
		wanted.SetString(message.TagTestReqID, "TR-1")
		wantedRaw, err := codec.Encode(wanted)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		other := message.New()
		other.SetString(message.TagBeginString, sid.BeginString)
		other.SetInt(message.TagMsgSeqNum, 2)
		other.SetString(message.TagMsgType, message.MsgTypeHeartbeat)
		otherRaw, err := codec.Encode(other)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}

		mustStore(t, s, sid, 1, string(wantedRaw), message.Outbound)
		mustStore(t, s, sid, 2, string(otherRaw), message.Outbound)

		matches, err := s.FindByField(t.Context(), sid, message.TagTestReqID, "TR-1", codec.Decode)
		if err != nil {
			t.Fatalf("FindByField: %v", err)
		}
		if len(matches) != 1 || matches[0].SeqNum != 1 {
			t.Fatalf("FindByField(TestReqID=TR-1) = %v, want exactly seq 1", matches)
		}
	})
}
