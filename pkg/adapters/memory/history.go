package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/outline/pkg/domain"
)

// History implements ports.HistoryLog in memory.
type History struct {
	records map[string][]domain.VersionRecord
	mu      sync.RWMutex
}

// NewHistory creates an empty history log.
func NewHistory() *History {
	return &History{records: make(map[string][]domain.VersionRecord)}
}

// Append stores a copy of rec.
func (h *History) Append(ctx context.Context, projectID string, rec domain.VersionRecord) error {
	rec.Snapshot = rec.Snapshot.Clone()
	rec.ChangeLog = slices.Clone(rec.ChangeLog)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[projectID] = append(h.records[projectID], rec)
	return nil
}

// List returns copies of the project's records, newest version first.
func (h *History) List(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.VersionRecord, 0, len(h.records[projectID]))
	for _, rec := range h.records[projectID] {
		rec.Snapshot = rec.Snapshot.Clone()
		rec.ChangeLog = slices.Clone(rec.ChangeLog)
		out = append(out, rec)
	}
	slices.SortStableFunc(out, domain.NewestFirst)
	return out, nil
}
