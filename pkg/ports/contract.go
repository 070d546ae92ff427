package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSnapshot(projectID string) *domain.Snapshot {
	s := domain.NewSnapshot(projectID)
	s.Meta.Name = "Contract outline"
	s.Nodes = append(s.Nodes, domain.Node{
		ID:      "step-1",
		Label:   "Step one",
		Payload: map[string]string{"owner": "ops"},
	})
	s.Edges = append(s.Edges, domain.Edge{ID: "e1", Source: domain.DefaultRootID, Target: "step-1"})
	s.UpdatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.OwnerID = "user-1"
	s.OwnerEmail = "user@example.com"
	return s
}

// RunSnapshotStoreContract verifies that a SnapshotStore implementation adheres to
// the interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	projectID := "contract-project-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot(projectID)

		require.NoError(t, store.Save(ctx, projectID, snap), "Save should not return error")

		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Meta, loaded.Meta)
		assert.Equal(t, snap.Nodes, loaded.Nodes)
		assert.Equal(t, snap.Edges, loaded.Edges)
		assert.True(t, snap.UpdatedAt.Equal(loaded.UpdatedAt))
		assert.Equal(t, snap.OwnerEmail, loaded.OwnerEmail)
		assert.Equal(t, snap.Status, loaded.Status)
	})

	t.Run("Load is isolated from Save", func(t *testing.T) {
		snap := contractSnapshot(projectID)
		require.NoError(t, store.Save(ctx, projectID, snap))

		snap.Nodes[1].Payload["owner"] = "mutated"
		loaded, err := store.Load(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, "ops", loaded.Nodes[1].Payload["owner"])

		loaded.Meta.Name = "mutated"
		again, err := store.Load(ctx, projectID)
		require.NoError(t, err)
		assert.Equal(t, "Contract outline", again.Meta.Name)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, projectID, contractSnapshot(projectID)))

		require.NoError(t, store.Delete(ctx, projectID), "Delete should not return error")

		_, err := store.Load(ctx, projectID)
		assert.ErrorIs(t, err, domain.ErrProjectNotFound, "Load after Delete should return ErrProjectNotFound")
		assert.NoError(t, store.Delete(ctx, projectID), "Delete is idempotent")
	})

	t.Run("List", func(t *testing.T) {
		id1 := projectID + "-1"
		id2 := projectID + "-2"
		require.NoError(t, store.Save(ctx, id1, contractSnapshot(id1)))
		require.NoError(t, store.Save(ctx, id2, contractSnapshot(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunHistoryLogContract verifies that a HistoryLog implementation adheres to the
// interface contract.
func RunHistoryLogContract(t *testing.T, log HistoryLog) {
	ctx := context.Background()
	projectID := "contract-history-" + time.Now().Format("20060102150405")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	record := func(version string, kind domain.CheckpointKind, offset time.Duration) domain.VersionRecord {
		s := contractSnapshot(projectID)
		s.Meta.LatestVersion = version
		return domain.NewVersionRecord(s, kind, []string{"changed " + version}, domain.Editor{ID: "user-1", Email: "user@example.com"}, "remark "+version, at.Add(offset))
	}

	t.Run("Empty", func(t *testing.T) {
		recs, err := log.List(ctx, "unknown-"+projectID)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("Append and List newest first", func(t *testing.T) {
		require.NoError(t, log.Append(ctx, projectID, record("1.0.1", domain.KindPatch, 0)))
		require.NoError(t, log.Append(ctx, projectID, record("1.1.0", domain.KindMinor, time.Minute)))
		require.NoError(t, log.Append(ctx, projectID, record("1.0.10", domain.KindPatch, -time.Minute)))
		require.NoError(t, log.Append(ctx, projectID, record("1.0.10001", domain.KindPatch, -2*time.Minute)))

		recs, err := log.List(ctx, projectID)
		require.NoError(t, err)
		require.Len(t, recs, 4)
		assert.Equal(t, "1.1.0", recs[0].Version)
		assert.Equal(t, "1.0.10001", recs[1].Version)
		assert.Equal(t, "1.0.10", recs[2].Version)
		assert.Equal(t, "1.0.1", recs[3].Version)

		got := recs[0]
		assert.Equal(t, domain.KindMinor, got.Kind)
		assert.Equal(t, domain.ParseVersion("1.1.0").Ordinal(), got.Ordinal)
		assert.Equal(t, []string{"changed 1.1.0"}, got.ChangeLog)
		assert.Equal(t, "remark 1.1.0", got.Remark)
		assert.Equal(t, "user@example.com", got.Editor.Email)
		assert.True(t, at.Add(time.Minute).Equal(got.CreatedAt))
		require.NotNil(t, got.Snapshot)
		assert.Equal(t, "1.1.0", got.Snapshot.Meta.LatestVersion)
		assert.Len(t, got.Snapshot.Nodes, 2)
		assert.Equal(t, "1", got.Snapshot.Nodes[1].ComputedCode)
	})

	t.Run("Projects are isolated", func(t *testing.T) {
		other := projectID + "-other"
		require.NoError(t, log.Append(ctx, other, record("2.0.0", domain.KindMajor, 0)))

		recs, err := log.List(ctx, other)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, domain.KindMajor, recs[0].Kind)
	})
}
