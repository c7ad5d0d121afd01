package storetest

import (
	"testing"

	"github.com/marmos91/fixengine/pkg/message"
)

func runArchiveTests(t *testing.T, factory StoreFactory) {
	t.Run("OverwriteReplacesLiveRecord", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "first", message.Outbound)
		mustStore(t, s, sid, 1, "second", message.Outbound)

		rec, err := s.Get(t.Context(), sid, 1, message.Outbound)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(rec.RawBytes) != "second" {
			t.Fatalf("Get after overwrite returned %q, want %q (the live/most recent record)", rec.RawBytes, "second")
		}
	})

	t.Run("OverwriteDoesNotTouchOtherSequenceNumbers", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "one", message.Outbound)
		mustStore(t, s, sid, 2, "two", message.Outbound)
		mustStore(t, s, sid, 1, "one-resent", message.Outbound)

		rec, err := s.Get(t.Context(), sid, 2, message.Outbound)
		if err != nil {
			t.Fatalf("Get(seq=2): %v", err)
		}
		if string(rec.RawBytes) != "two" {
			t.Fatalf("overwriting seq 1 corrupted seq 2: got %q", rec.RawBytes)
		}
	})

	t.Run("RepeatedOverwritesEachArchivePriorVersion", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		sid := testSessionID()

		mustStore(t, s, sid, 1, "v1", message.Inbound)
		mustStore(t, s, sid, 1, "v2", message.Inbound)
		mustStore(t, s, sid, 1, "v3", message.Inbound)

		type archiveCounter interface {
			ArchiveCount(sid message.SessionID, seq int, dir message.Direction) int
		}
		ac, ok := s.(archiveCounter)
		if !ok {
			t.Skip("backend does not expose ArchiveCount")
		}
		if got := ac.ArchiveCount(sid, 1, message.Inbound); got != 2 {
			t.Fatalf("ArchiveCount after 2 overwrites = %d, want 2 (v1 and v2 archived, v3 live)", got)
		}

		rec, err := s.Get(t.Context(), sid, 1, message.Inbound)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(rec.RawBytes) != "v3" {
			t.Fatalf("Get after 3 writes returned %q, want %q", rec.RawBytes, "v3")
		}
	})
}
