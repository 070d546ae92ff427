package outline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/outline"
	"github.com/aretw0/outline/pkg/adapters/memory"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_OpenReturnsSameSession(t *testing.T) {
	eng := outline.New(outline.WithAutosaveInterval(0))
	defer eng.Close(context.Background())

	ctx := context.Background()
	s1, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	s2, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}

func TestEngine_CloseFlushesDirtySessions(t *testing.T) {
	store := memory.NewStore()
	eng := outline.New(outline.WithStore(store), outline.WithAutosaveInterval(time.Hour))

	ctx := context.Background()
	s, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	_, err = s.AddChild(domain.DefaultRootID, domain.Node{ID: "n1", Label: "Vent"})
	require.NoError(t, err)

	require.NoError(t, eng.Close(ctx))

	snap, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "1.0.1", snap.Meta.LatestVersion)
	assert.Len(t, snap.Nodes, 2)

	_, err = eng.Open(ctx, "p2")
	assert.ErrorIs(t, err, outline.ErrClosed)
	assert.NoError(t, eng.Close(ctx), "Close is idempotent")
}

func TestEngine_CloseWithoutAutosaveDoesNotWrite(t *testing.T) {
	eng := outline.New(outline.WithAutosaveInterval(0))
	ctx := context.Background()
	_, err := eng.Open(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, eng.Close(ctx))

	_, err = eng.Inspect(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestEngine_AutosaveTick(t *testing.T) {
	eng := outline.New(outline.WithAutosaveInterval(10 * time.Millisecond))
	defer eng.Close(context.Background())

	ctx := context.Background()
	s, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, s.Rename("Shutdown"))

	require.Eventually(t, func() bool {
		snap, err := eng.Inspect(ctx, "p1")
		return err == nil && snap.Meta.Name == "Shutdown"
	}, 2*time.Second, 10*time.Millisecond)

	recs, err := eng.History(ctx, "p1")
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, domain.KindPatch, recs[0].Kind)
}

func TestEngine_Subscribe(t *testing.T) {
	eng := outline.New(outline.WithAutosaveInterval(0))
	defer eng.Close(context.Background())

	var mu sync.Mutex
	var got []session.Event
	cancel := eng.Subscribe("p1", func(ev session.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	ctx := context.Background()
	s1, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	s2, err := eng.Open(ctx, "p2")
	require.NoError(t, err)

	require.NoError(t, s1.Rename("one"))
	require.NoError(t, s2.Rename("two"))
	cancel()
	require.NoError(t, s1.Rename("again"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, session.EventChanged, got[0].Type)
	assert.Equal(t, "p1", got[0].ProjectID)
}

func TestEngine_ProjectsAndDelete(t *testing.T) {
	eng := outline.New(outline.WithAutosaveInterval(0))
	defer eng.Close(context.Background())
	ctx := context.Background()

	for _, id := range []string{"b", "a"} {
		s, err := eng.Open(ctx, id)
		require.NoError(t, err)
		_, err = s.Checkpoint(ctx, domain.KindPatch, "")
		require.NoError(t, err)
	}

	ids, err := eng.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, eng.Delete(ctx, "a"))
	ids, err = eng.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	recs, err := eng.History(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, recs, 1, "history survives deletion")
}

func TestEngine_ViewDoesNotOpenProject(t *testing.T) {
	store := memory.NewStore()
	eng := outline.New(outline.WithStore(store), outline.WithAutosaveInterval(5*time.Millisecond))
	ctx := context.Background()

	v, err := eng.View(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", v.ID())
	assert.Len(t, v.Outline(nil), 1)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, eng.Close(ctx))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = eng.View(ctx, "ghost")
	assert.ErrorIs(t, err, outline.ErrClosed)
}

func TestEngine_ViewSeesOpenSession(t *testing.T) {
	eng := outline.New(outline.WithAutosaveInterval(0))
	defer eng.Close(context.Background())
	ctx := context.Background()

	s, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, s.Rename("Unsaved"))

	v, err := eng.View(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Unsaved", v.Snapshot().Meta.Name)
	assert.True(t, v.Dirty())
}

func TestEngine_OpenUntouchedProjectIsNotSaved(t *testing.T) {
	store := memory.NewStore()
	eng := outline.New(outline.WithStore(store), outline.WithAutosaveInterval(5*time.Millisecond))
	ctx := context.Background()

	for _, id := range []string{"ghost-1", "ghost-2", "ghost-3"} {
		_, err := eng.Open(ctx, id)
		require.NoError(t, err)
	}
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, eng.Close(ctx))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEngine_ReleaseFlushesAndForgets(t *testing.T) {
	store := memory.NewStore()
	eng := outline.New(outline.WithStore(store), outline.WithAutosaveInterval(time.Hour))
	defer eng.Close(context.Background())
	ctx := context.Background()

	s1, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, s1.Rename("Shutdown"))

	require.NoError(t, eng.Release(ctx, "p1"))
	require.NoError(t, eng.Release(ctx, "p1"), "releasing a closed project is a no-op")

	snap, err := store.Load(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Shutdown", snap.Meta.Name)

	s2, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, "Shutdown", s2.Snapshot().Meta.Name)
	assert.False(t, s2.Dirty())
}

func TestEngine_IdleTimeoutReleasesSessions(t *testing.T) {
	store := memory.NewStore()
	eng := outline.New(
		outline.WithStore(store),
		outline.WithAutosaveInterval(time.Hour),
		outline.WithIdleTimeout(20*time.Millisecond),
	)
	defer eng.Close(context.Background())
	ctx := context.Background()

	s1, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	_, err = s1.AddChild(domain.DefaultRootID, domain.Node{ID: "n1", Label: "Vent"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := store.Load(ctx, "p1")
		return err == nil && len(snap.Nodes) == 2
	}, 2*time.Second, 5*time.Millisecond, "idle session is flushed on release")

	s2, err := eng.Open(ctx, "p1")
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
}
