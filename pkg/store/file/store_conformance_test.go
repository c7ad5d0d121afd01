package file_test

import (
	"testing"
	"time"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/store"
	"github.com/marmos91/fixengine/pkg/store/file"
	"github.com/marmos91/fixengine/pkg/store/storetest"
)

func TestFileStoreConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		dir := t.TempDir()
		s, err := file.Open(dir)
		if err != nil {
			t.Fatalf("file.Open: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	sid := message.SessionID{BeginString: "FIX.4.4", SenderCompID: "BANZAI", TargetCompID: "EXEC"}

	s, err := file.Open(dir)
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	if err := s.SetIncoming(t.Context(), sid, 5); err != nil {
		t.Fatalf("SetIncoming: %v", err)
	}
	if err := s.Store(t.Context(), sid, 1, []byte("35=A"), message.Outbound, time.Now()); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := file.Open(dir)
	if err != nil {
		t.Fatalf("file.Open (reopen): %v", err)
	}
	defer reopened.Close()

	n, err := reopened.NextIncoming(t.Context(), sid)
	if err != nil || n != 5 {
		t.Fatalf("NextIncoming after reopen = (%d, %v), want (5, nil)", n, err)
	}

	rec, err := reopened.Get(t.Context(), sid, 1, message.Outbound)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(rec.RawBytes) != "35=A" {
		t.Fatalf("Get after reopen returned %q, want %q", rec.RawBytes, "35=A")
	}
}

func TestFileStoreCustomSegmentSize(t *testing.T) {
	dir := t.TempDir()
	sid := message.SessionID{BeginString: "FIX.4.4", SenderCompID: "BANZAI", TargetCompID: "EXEC"}

	s, err := file.OpenWithSegmentSize(dir, 128*1024)
	if err != nil {
		t.Fatalf("OpenWithSegmentSize: %v", err)
	}
	defer s.Close()

	if err := s.Store(t.Context(), sid, 1, []byte("35=A"), message.Outbound, time.Now()); err != nil {
		t.Fatalf("Store: %v", err)
	}
	rec, err := s.Get(t.Context(), sid, 1, message.Outbound)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(rec.RawBytes) != "35=A" {
		t.Fatalf("Get returned %q, want %q", rec.RawBytes, "35=A")
	}
}
