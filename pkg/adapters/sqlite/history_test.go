package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*History, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	h, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h, path
}

func TestHistory_Contract(t *testing.T) {
	h, _ := openTemp(t)
	ports.RunHistoryLogContract(t, h)
}

func TestHistory_SurvivesReopen(t *testing.T) {
	h, path := openTemp(t)
	ctx := context.Background()

	snap := domain.NewSnapshot("p1")
	snap.Meta.LatestVersion = "1.0.1"
	rec := domain.NewVersionRecord(snap, domain.KindPatch, []string{domain.InitialVersionEntry}, domain.Editor{}, "", time.Unix(1700000000, 42))
	require.NoError(t, h.Append(ctx, "p1", rec))
	require.NoError(t, h.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1.0.1", recs[0].Version)
	assert.Equal(t, []string{domain.InitialVersionEntry}, recs[0].ChangeLog)
	assert.True(t, rec.CreatedAt.Equal(recs[0].CreatedAt))
	assert.Equal(t, "0", recs[0].Snapshot.Nodes[0].ComputedCode)
}

func TestHistory_SameVersionNewestFirst(t *testing.T) {
	h, _ := openTemp(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	snap := domain.NewSnapshot("p1")
	snap.Meta.LatestVersion = "2.0.0"
	require.NoError(t, h.Append(ctx, "p1", domain.NewVersionRecord(snap, domain.KindMajor, nil, domain.Editor{}, "first", at)))
	require.NoError(t, h.Append(ctx, "p1", domain.NewVersionRecord(snap, domain.KindMajor, nil, domain.Editor{}, "second", at.Add(time.Second))))

	recs, err := h.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "second", recs[0].Remark)
}

func TestHistory_MigratesNarrowOrdinals(t *testing.T) {
	h, path := openTemp(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, v := range []string{"1.1.0", "1.0.10001"} {
		snap := domain.NewSnapshot("p1")
		snap.Meta.LatestVersion = v
		require.NoError(t, h.Append(ctx, "p1", domain.NewVersionRecord(snap, domain.KindPatch, nil, domain.Editor{}, "", at)))
	}
	// Rewrite the rows the way schema version 1 numbered them.
	_, err := h.db.Exec("UPDATE versions SET ordinal = 100010000 WHERE version = '1.1.0'")
	require.NoError(t, err)
	_, err = h.db.Exec("UPDATE versions SET ordinal = 100010001 WHERE version = '1.0.10001'")
	require.NoError(t, err)
	_, err = h.db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	require.NoError(t, h.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	recs, err := reopened.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1.1.0", recs[0].Version)
	assert.Equal(t, "1.0.10001", recs[1].Version)
	assert.Equal(t, domain.ParseVersion("1.1.0").Ordinal(), recs[0].Ordinal)
}
