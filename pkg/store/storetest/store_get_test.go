package storetest

import (
	"testing"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/store"
)

func runStoreAndGetTests(t *testing.T, factory StoreFactory) {
	t.Run("StoreThenGetRoundTrips", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "35=A", message.Outbound)

		rec, err := s.Get(t.Context(), sid, 1, message.Outbound)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(rec.RawBytes) != "35=A" {
			t.Fatalf("Get returned RawBytes %q, want %q", rec.RawBytes, "35=A")
		}
		if rec.SeqNum != 1 || rec.Direction != message.Outbound || rec.SessionID != sid {
			t.Fatalf("Get returned mismatched record: %+v", rec)
		}
	})

	t.Run("GetMissingReturnsNotFound", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		_, err := s.Get(t.Context(), sid, 99, message.Inbound)
		if err == nil {
			t.Fatalf("Get on absent record succeeded, want ErrNotFound")
		}
		if !store.IsNotFound(err) {
			t.Fatalf("Get on absent record returned %v, want ErrNotFound", err)
		}
	})

	t.Run("InboundAndOutboundDoNotCollide", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 5, "inbound-body", message.Inbound)
		mustStore(t, s, sid, 5, "outbound-body", message.Outbound)

		in, err := s.Get(t.Context(), sid, 5, message.Inbound)
		if err != nil {
			t.Fatalf("Get(inbound): %v", err)
		}
		out, err := s.Get(t.Context(), sid, 5, message.Outbound)
		if err != nil {
			t.Fatalf("Get(outbound): %v", err)
		}
		if string(in.RawBytes) != "inbound-body" || string(out.RawBytes) != "outbound-body" {
			t.Fatalf("same seqNum across directions collided: in=%q out=%q", in.RawBytes, out.RawBytes)
		}
	})

	t.Run("GetReturnsDefensiveCopy", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "original", message.Inbound)
		rec, err := s.Get(t.Context(), sid, 1, message.Inbound)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		rec.RawBytes[0] = 'X'

		rec2, err := s.Get(t.Context(), sid, 1, message.Inbound)
		if err != nil {
			t.Fatalf("Get (second read): %v", err)
		}
		if string(rec2.RawBytes) != "original" {
			t.Fatalf("mutating a returned record leaked into the store: got %q", rec2.RawBytes)
		}
	})
}
