package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/outline/pkg/adapters/memory"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *flakyStore
	history   *memory.History
	manager   *session.Manager
	published []*domain.Snapshot
	events    []session.Event
	mu        sync.Mutex
}

func (f *fixture) Publish(ctx context.Context, snap *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, snap)
	return nil
}

func (f *fixture) observe(e session.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func newFixture() *fixture {
	f := &fixture{store: newFlakyStore(), history: memory.NewHistory()}
	f.manager = session.NewManager(f.store, session.WithHistory(f.history))
	return f
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func (f *fixture) open(t *testing.T, id string) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), f.manager, id,
		session.WithEditor(domain.Editor{ID: "u1", Email: "u1@example.com"}),
		session.WithPublisher(f),
		session.WithObserver(f.observe),
		session.WithClock(func() time.Time { return fixedNow }),
		session.WithIDGenerator(sequentialIDs()),
	)
	require.NoError(t, err)
	return s
}

func TestOpen_NewProject(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")

	snap := s.Snapshot()
	assert.Equal(t, "p1", snap.Meta.ID)
	assert.Equal(t, "1.0.0", snap.Meta.LatestVersion)
	assert.Nil(t, s.Persisted())
	assert.True(t, s.Dirty())
	assert.Equal(t, []string{domain.InitialVersionEntry}, s.Changes())
	assert.Equal(t, session.SaveIdle, s.Status().State)

	_, err := session.Open(context.Background(), f.manager, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOpen_ExistingProjectIsClean(t *testing.T) {
	f := newFixture()
	stored := domain.NewSnapshot("p1").Annotated()
	stored.Meta.LatestVersion = "1.4.2"
	require.NoError(t, f.store.Save(context.Background(), "p1", stored))

	s := f.open(t, "p1")

	assert.False(t, s.Dirty())
	assert.Empty(t, s.Changes())
	assert.Equal(t, "1.4.2", s.Snapshot().Meta.LatestVersion)
	assert.Empty(t, s.Snapshot().Nodes[0].ComputedCode)
}

func TestSession_Mutations(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")

	a, err := s.AddChild(domain.DefaultRootID, domain.Node{Label: "Prepare"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", a.ID)
	b, err := s.AddChild(domain.DefaultRootID, domain.Node{})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultNodeLabel, b.Label)
	_, err = s.AddChild(a.ID, domain.Node{ID: "a1", Payload: map[string]string{"tool": "wrench"}})
	require.NoError(t, err)

	label := "Execute"
	require.NoError(t, s.UpdateNode(b.ID, domain.NodePatch{Label: &label, SetPayload: map[string]string{"team": "ops"}}))
	require.NoError(t, s.Rename("Line maintenance"))

	out := s.Outline(nil)
	codes := map[string]string{}
	for _, n := range out {
		codes[n.ID] = n.ComputedCode
	}
	assert.Equal(t, map[string]string{"root": "0", "id-1": "1", "id-2": "2", "a1": "1.1"}, codes)
	assert.Len(t, s.Outline(domain.NewCollapseSet("id-1")), 3)

	require.NoError(t, s.Reorder(domain.DragIntent{DraggedID: "id-2", TargetID: "id-1", Mode: domain.DropBefore}))
	tree := s.Tree()
	require.Len(t, tree, 1)
	assert.Equal(t, "Execute", tree[0].Children[0].Title)
	assert.Equal(t, "1", tree[0].Children[0].Code)

	require.NoError(t, s.DeleteNode("id-1", true))
	assert.Len(t, s.Snapshot().Nodes, 2)

	f.mu.Lock()
	assert.Len(t, f.events, 7)
	assert.Equal(t, session.EventChanged, f.events[0].Type)
	f.mu.Unlock()
}

func TestSession_RejectedMutationLeavesSnapshot(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")
	_, err := s.AddChild(domain.DefaultRootID, domain.Node{ID: "a"})
	require.NoError(t, err)
	before := s.Snapshot()

	err = s.Reorder(domain.DragIntent{DraggedID: domain.DefaultRootID, TargetID: "a", Mode: domain.DropOnto})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.Equal(t, before, s.Snapshot())

	assert.ErrorIs(t, s.DeleteNode(domain.DefaultRootID, false), domain.ErrInvariantViolation)
	assert.ErrorIs(t, s.Rename(""), domain.ErrValidation)
	_, err = s.AddChild("ghost", domain.Node{})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.ErrorIs(t, s.CreateRoot(), domain.ErrInvariantViolation)
	assert.Equal(t, before, s.Snapshot())
}

func TestSession_Import(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")

	err := s.Import([]domain.Node{{ID: "x"}}, nil, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	err = s.Import([]domain.Node{{ID: "x"}, {ID: "y"}}, []domain.Edge{{Source: "x", Target: "y"}, {Source: "y", Target: "x"}}, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.DefaultRootID, s.Snapshot().Nodes[0].ID, "no partial apply")

	nodes := []domain.Node{{ID: "x", Label: "X", ComputedCode: "9"}, {ID: "y", Label: "Y"}}
	require.NoError(t, s.Import(nodes, []domain.Edge{{ID: "e", Source: "x", Target: "y"}}, "Imported"))

	snap := s.Snapshot()
	assert.Equal(t, "Imported", snap.Meta.Name)
	assert.Equal(t, "p1", snap.Meta.ID)
	assert.Empty(t, snap.Nodes[0].ComputedCode)
	assert.Equal(t, "9", nodes[0].ComputedCode, "caller's slice untouched")
}

func TestSession_CheckpointKinds(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")
	ctx := context.Background()

	rec, err := s.Checkpoint(ctx, domain.KindPatch, "first")
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", rec.Version)
	assert.Equal(t, []string{domain.InitialVersionEntry}, rec.ChangeLog)
	assert.Equal(t, "u1", rec.Editor.ID)
	assert.Equal(t, fixedNow, rec.CreatedAt)
	assert.False(t, s.Dirty())

	// Not debounced: each call is a distinct bump, even without changes.
	rec, err = s.Checkpoint(ctx, domain.KindPatch, "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.2", rec.Version)
	assert.Empty(t, rec.ChangeLog)

	_, err = s.AddChild(domain.DefaultRootID, domain.Node{ID: "a", Label: "A"})
	require.NoError(t, err)
	rec, err = s.Checkpoint(ctx, domain.KindMinor, "archive")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", rec.Version)
	assert.Equal(t, []string{"added node [1] A (ID:a)", domain.StructureChangedEntry}, rec.ChangeLog)

	stored, err := f.store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", stored.Meta.LatestVersion)
	assert.Equal(t, domain.StatusArchived, stored.Status)
	assert.Equal(t, "u1@example.com", stored.OwnerEmail)
	assert.Equal(t, "1", stored.Nodes[1].ComputedCode, "codes are embedded for audit")

	assert.Equal(t, "1.1.0", s.Snapshot().Meta.LatestVersion)
	assert.Equal(t, session.SaveSaved, s.Status().State)

	recs, err := f.manager.History(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"1.1.0", "1.0.2", "1.0.1"}, []string{recs[0].Version, recs[1].Version, recs[2].Version})
}

func TestSession_PublishForksLineage(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")
	ctx := context.Background()
	_, err := s.Checkpoint(ctx, domain.KindMinor, "")
	require.NoError(t, err)

	rec, err := s.Checkpoint(ctx, domain.KindMajor, "go live")
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", rec.Version)
	assert.Equal(t, domain.KindMajor, rec.Kind)
	assert.Equal(t, "id-1", rec.Snapshot.Meta.ID)
	assert.Equal(t, "p1", rec.Snapshot.Meta.ForkedFrom)

	fork, err := f.store.Load(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, fork.Status)
	assert.Equal(t, "2.0.0", fork.Meta.LatestVersion)

	require.Len(t, f.published, 1)
	assert.Equal(t, "id-1", f.published[0].Meta.ID)

	assert.Equal(t, "1.1.0", s.Snapshot().Meta.LatestVersion, "session stays on its own lineage")
	assert.Equal(t, "p1", s.ID())

	forkHistory, err := f.manager.History(ctx, "id-1")
	require.NoError(t, err)
	assert.Len(t, forkHistory, 1)
}

func TestSession_CheckpointFailureSurfacesImmediately(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")
	ctx := context.Background()
	_, err := s.AddChild(domain.DefaultRootID, domain.Node{ID: "a"})
	require.NoError(t, err)
	before := s.Snapshot()

	f.store.fail.Store(true)
	_, err = s.Checkpoint(ctx, domain.KindPatch, "")

	require.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, session.SaveError, s.Status().State)
	assert.Contains(t, s.Status().Error, "disk full")
	assert.Equal(t, before, s.Snapshot(), "no rollback of in-memory state")
	assert.True(t, s.Dirty())

	f.store.fail.Store(false)
	saved, err := s.Autosave(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "1.0.1", s.Snapshot().Meta.LatestVersion, "failed attempt did not consume a version")

	f.mu.Lock()
	defer f.mu.Unlock()
	var types []session.EventType
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, session.EventFailed)
	assert.Equal(t, session.EventSaved, types[len(types)-1])
}

func TestSession_AutosaveOnlyWhenChanged(t *testing.T) {
	f := newFixture()
	s := f.open(t, "p1")
	ctx := context.Background()

	saved, err := s.Autosave(ctx)
	require.NoError(t, err)
	assert.False(t, saved, "untouched new project is not written")
	assert.EqualValues(t, 0, f.store.saves.Load())

	_, err = s.AddChild(domain.DefaultRootID, domain.Node{ID: "a", Label: "Vent"})
	require.NoError(t, err)
	saved, err = s.Autosave(ctx)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = s.Autosave(ctx)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.EqualValues(t, 1, f.store.saves.Load())

	require.NoError(t, s.Rename("Renamed"))
	saved, err = s.Autosave(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "1.0.2", s.Snapshot().Meta.LatestVersion)

	recs, err := f.manager.History(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "autosave", recs[0].Remark)
	assert.Equal(t, []string{`renamed outline from "Untitled procedure" to "Renamed"`}, recs[0].ChangeLog)
}

func TestSession_PublishFailure(t *testing.T) {
	f := newFixture()
	s, err := session.Open(context.Background(), f.manager, "p1",
		session.WithPublisher(failingPublisher{}),
	)
	require.NoError(t, err)

	_, err = s.Checkpoint(context.Background(), domain.KindMajor, "")

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "publish", perr.Op)
	assert.Equal(t, session.SaveError, s.Status().State)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, *domain.Snapshot) error {
	return errors.New("repository read-only")
}
