package ports_test

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
)

// jsonStore round-trips through JSON to simulate serialization.
type jsonStore struct {
	data map[string][]byte
}

func (m *jsonStore) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	m.data[projectID] = b
	return nil
}

func (m *jsonStore) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	b, ok := m.data[projectID]
	if !ok {
		return nil, domain.NotFound(projectID)
	}
	var s domain.Snapshot
	return &s, json.Unmarshal(b, &s)
}

func (m *jsonStore) Delete(ctx context.Context, projectID string) error {
	delete(m.data, projectID)
	return nil
}

func (m *jsonStore) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

type jsonHistory struct {
	data map[string][][]byte
}

func (h *jsonHistory) Append(ctx context.Context, projectID string, rec domain.VersionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	h.data[projectID] = append(h.data[projectID], b)
	return nil
}

func (h *jsonHistory) List(ctx context.Context, projectID string) ([]domain.VersionRecord, error) {
	var out []domain.VersionRecord
	for _, b := range slices.Backward(h.data[projectID]) {
		var rec domain.VersionRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	slices.SortStableFunc(out, domain.NewestFirst)
	return out, nil
}

func TestSnapshotStoreContract_JSON(t *testing.T) {
	ports.RunSnapshotStoreContract(t, &jsonStore{data: map[string][]byte{}})
}

func TestHistoryLogContract_JSON(t *testing.T) {
	ports.RunHistoryLogContract(t, &jsonHistory{data: map[string][][]byte{}})
}
