// Package storetest provides a backend-agnostic conformance suite that every
// Store implementation (memory, file, sql) runs against, asserting the
// invariants of the data model.
//
// A StoreFactory function type receives *testing.T (so factories can use
// t.TempDir() and t.Cleanup()), and one RunConformanceSuite entry point
// drives every backend through the same checks.
package storetest

import (
	"testing"
	"time"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/store"
)

// StoreFactory creates a fresh Store instance for each test.
type StoreFactory func(t *testing.T) store.Store

// RunConformanceSuite runs the full conformance suite against factory. Each
// test gets a fresh store instance to ensure isolation.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("Sequencing", func(t *testing.T) { runSequencingTests(t, factory) })
	t.Run("StoreAndGet", func(t *testing.T) { runStoreAndGetTests(t, factory) })
	t.Run("Archive", func(t *testing.T) { runArchiveTests(t, factory) })
	t.Run("Range", func(t *testing.T) { runRangeTests(t, factory) })
}

func testSessionID() message.SessionID {
	return message.SessionID{BeginString: "FIX.4.4", SenderCompID: "BANZAI", TargetCompID: "EXEC"}
}

func mustStore(t *testing.T, s store.Store, sid message.SessionID, seq int, body string, dir message.Direction) {
	t.Helper()
	ctx := t.Context()
	if err := s.Store(ctx, sid, seq, []byte(body), dir, time.Now()); err != nil {
		t.Fatalf("Store(seq=%d) failed: %v", seq, err)
	}
}
