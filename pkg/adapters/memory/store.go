package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
)

// Store is the default SnapshotStore: projects live as long as the process.
// Snapshots are cloned on the way in and out.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.Snapshot
}

var _ ports.SnapshotStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{snapshots: make(map[string]*domain.Snapshot)}
}

func (s *Store) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	snap = snap.Clone()
	s.mu.Lock()
	s.snapshots[projectID] = snap
	s.mu.Unlock()
	return nil
}

func (s *Store) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[projectID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NotFound(projectID)
	}
	return snap.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	delete(s.snapshots, projectID)
	s.mu.Unlock()
	return nil
}

// List returns the project ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.snapshots)), nil
}
