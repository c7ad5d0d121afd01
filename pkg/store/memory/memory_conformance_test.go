package memory_test

import (
	"testing"

	"github.com/marmos91/fixengine/pkg/store"
	"github.com/marmos91/fixengine/pkg/store/memory"
	"github.com/marmos91/fixengine/pkg/store/storetest"
)

func TestMemoryStoreConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		return memory.New()
	})
}
