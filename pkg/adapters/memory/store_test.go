package memory_test

import (
	"testing"

	"github.com/aretw0/outline/pkg/adapters/memory"
	"github.com/aretw0/outline/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSnapshotStoreContract(t, store)
}

func TestMemoryHistory_Contract(t *testing.T) {
	ports.RunHistoryLogContract(t, memory.NewHistory())
}
