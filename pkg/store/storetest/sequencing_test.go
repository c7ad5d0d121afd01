package storetest

import (
	"testing"
	"time"

	"github.com/marmos91/fixengine/pkg/message"
)

func runSequencingTests(t *testing.T, factory StoreFactory) {
	t.Run("FreshSessionStartsAtOne", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := t.Context()
		sid := testSessionID()

		in, err := s.NextIncoming(ctx, sid)
		if err != nil || in != 1 {
			t.Fatalf("NextIncoming on fresh session = (%d, %v), want (1, nil)", in, err)
		}
		out, err := s.NextOutgoing(ctx, sid)
		if err != nil || out != 1 {
			t.Fatalf("NextOutgoing on fresh session = (%d, %v), want (1, nil)", out, err)
		}
	})

	t.Run("SetIncomingPersists", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := t.Context()
		sid := testSessionID()

		if err := s.SetIncoming(ctx, sid, 42); err != nil {
			t.Fatalf("SetIncoming: %v", err)
		}
		n, err := s.NextIncoming(ctx, sid)
		if err != nil || n != 42 {
			t.Fatalf("NextIncoming after SetIncoming(42) = (%d, %v), want (42, nil)", n, err)
		}
		// The counterpart direction must be unaffected.
		out, err := s.NextOutgoing(ctx, sid)
		if err != nil || out != 1 {
			t.Fatalf("NextOutgoing after SetIncoming(42) = (%d, %v), want (1, nil)", out, err)
		}
	})

	t.Run("StoreAdvancesOutgoingCounter", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := t.Context()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "A", message.Outbound)
		mustStore(t, s, sid, 2, "B", message.Outbound)

		n, err := s.NextOutgoing(ctx, sid)
		if err != nil || n != 3 {
			t.Fatalf("NextOutgoing after storing seq 1,2 = (%d, %v), want (3, nil)", n, err)
		}
		// Inbound counter must be untouched by outbound stores.
		in, err := s.NextIncoming(ctx, sid)
		if err != nil || in != 1 {
			t.Fatalf("NextIncoming after only-outbound stores = (%d, %v), want (1, nil)", in, err)
		}
	})

	t.Run("ResetBothResetsIndependentOfHistory", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := t.Context()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "A", message.Inbound)
		mustStore(t, s, sid, 2, "B", message.Inbound)
		if err := s.SetOutgoing(ctx, sid, 7); err != nil {
			t.Fatalf("SetOutgoing: %v", err)
		}

		if err := s.ResetBoth(ctx, sid); err != nil {
			t.Fatalf("ResetBoth: %v", err)
		}

		in, err := s.NextIncoming(ctx, sid)
		if err != nil || in != 1 {
			t.Fatalf("NextIncoming after ResetBoth = (%d, %v), want (1, nil)", in, err)
		}
		out, err := s.NextOutgoing(ctx, sid)
		if err != nil || out != 1 {
			t.Fatalf("NextOutgoing after ResetBoth = (%d, %v), want (1, nil)", out, err)
		}
	})

	t.Run("SequenceCountersAreIsolatedPerSession", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := t.Context()
		a := testSessionID()
		b := message.SessionID{BeginString: "FIX.4.4", SenderCompID: "OTHER", TargetCompID: "EXEC"}

		if err := s.SetIncoming(ctx, a, 10); err != nil {
			t.Fatalf("SetIncoming(a): %v", err)
		}
		n, err := s.NextIncoming(ctx, b)
		if err != nil || n != 1 {
			t.Fatalf("NextIncoming(b) after SetIncoming(a, 10) = (%d, %v), want (1, nil)", n, err)
		}
	})

	t.Run("RejectsNonPositiveSequence", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := t.Context()
		sid := testSessionID()

		if err := s.SetIncoming(ctx, sid, 0); err == nil {
			t.Fatalf("SetIncoming(0) succeeded, want error")
		}
		if err := s.Store(ctx, sid, 0, []byte("x"), message.Inbound, time.Now()); err == nil {
			t.Fatalf("Store(seq=0) succeeded, want error")
		}
	})
}
