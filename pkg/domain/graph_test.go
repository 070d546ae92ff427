package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddRootAndChildren(t *testing.T) {
	g := NewGraph(nil, nil)
	require.NoError(t, g.AddRoot(Node{ID: "root", Label: "Start"}))
	assert.ErrorIs(t, g.AddRoot(Node{ID: "other"}), ErrInvariantViolation)

	e, err := g.AddChild("root", Node{ID: "a", Label: "A"})
	require.NoError(t, err)
	assert.Equal(t, Edge{ID: "eroot-a", Source: "root", Target: "a"}, e)

	_, err = g.AddChild("root", Node{ID: "b"})
	require.NoError(t, err)

	_, err = g.AddChild("ghost", Node{ID: "c"})
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = g.AddChild("root", Node{ID: "a"})
	assert.ErrorIs(t, err, ErrDuplicateNode)
	_, err = g.AddChild("root", Node{})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, "root", g.RootID())
	assert.Equal(t, map[string]string{"root": "0", "a": "1", "b": "2"}, Codes(g.Nodes(), g.Edges()))
}

func TestGraph_ConnectRejectsSecondParentAndCycles(t *testing.T) {
	nodes, edges := sample()
	g := NewGraph(nodes, edges)

	_, err := g.Connect("b", "a1")
	assert.ErrorIs(t, err, ErrInvariantViolation, "a1 already has a parent")

	g2 := NewGraph([]Node{{ID: "x"}, {ID: "y"}}, []Edge{{Source: "x", Target: "y"}})
	_, err = g2.Connect("y", "x")
	assert.ErrorIs(t, err, ErrInvariantViolation)
	_, err = g2.Connect("x", "x")
	assert.ErrorIs(t, err, ErrInvariantViolation)

	g3 := NewGraph([]Node{{ID: "x"}, {ID: "y"}}, nil)
	e, err := g3.Connect("x", "y")
	require.NoError(t, err)
	assert.Equal(t, "x", e.Source)
}

func TestGraph_UpdateNode(t *testing.T) {
	nodes, edges := sample()
	g := NewGraph(nodes, edges)
	label, desc, jump := "Renamed", "details", "b"

	require.NoError(t, g.UpdateNode("a1", NodePatch{
		Label:        &label,
		Description:  &desc,
		JumpTargetID: &jump,
		SetPayload:   map[string]string{"level": "2"},
		UnsetPayload: []string{"tool"},
	}))

	n, ok := g.Node("a1")
	require.True(t, ok)
	assert.Equal(t, "Renamed", n.Label)
	assert.Equal(t, "details", n.Description)
	assert.Equal(t, "b", n.JumpTargetID)
	assert.Equal(t, map[string]string{"team": "qa", "level": "2"}, n.Payload)
	assert.Equal(t, "drill", nodes[2].Payload["tool"], "graph owns its copy")

	require.NoError(t, g.UpdateNode("a2", NodePatch{SetPayload: map[string]string{"k": "v"}}))
	n, _ = g.Node("a2")
	assert.Equal(t, map[string]string{"k": "v"}, n.Payload)

	require.NoError(t, g.UpdateNode("a2", NodePatch{Payload: map[string]string{"x": "y"}}))
	n, _ = g.Node("a2")
	assert.Equal(t, map[string]string{"x": "y"}, n.Payload)

	assert.ErrorIs(t, g.UpdateNode("ghost", NodePatch{}), ErrNodeNotFound)
}

func TestGraph_DeleteNodeOrphansChildren(t *testing.T) {
	nodes, edges := sample()
	g := NewGraph(nodes, edges)

	require.NoError(t, g.DeleteNode("a"))

	_, ok := g.Node("a")
	assert.False(t, ok)
	for _, e := range g.Edges() {
		assert.NotEqual(t, "a", e.Source)
		assert.NotEqual(t, "a", e.Target)
	}
	_, ok = g.Node("a1")
	assert.True(t, ok, "children are orphaned, not deleted")
	assert.Len(t, g.Edges(), 2)

	assert.ErrorIs(t, g.DeleteNode("root"), ErrInvariantViolation)
	assert.ErrorIs(t, g.DeleteNode("a"), ErrNodeNotFound)
}

func TestGraph_DeleteSubtree(t *testing.T) {
	nodes, edges := sample()
	g := NewGraph(nodes, edges)

	require.NoError(t, g.DeleteSubtree("a"))

	ids := []string{}
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"root", "b", "b1"}, ids)
	assert.Len(t, g.Edges(), 2)
	assert.ErrorIs(t, g.DeleteSubtree("root"), ErrInvariantViolation)
}

func TestGraph_IsolatedFromCallers(t *testing.T) {
	nodes, edges := sample()
	g := NewGraph(nodes, edges)

	out := g.Nodes()
	out[0].Label = "changed"
	out[0].Payload["site"] = "changed"
	g.Edges()[0].Source = "changed"

	n, _ := g.Node("root")
	assert.Equal(t, "Start", n.Label)
	assert.Equal(t, "plant-1", n.Payload["site"])
	assert.Equal(t, "root", g.Edges()[0].Source)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		nodes []Node
		edges []Edge
		field string
	}{
		{"empty id", []Node{{ID: ""}}, nil, "nodes[0].id"},
		{"duplicate id", []Node{{ID: "a"}, {ID: "a"}}, nil, "nodes[1].id"},
		{"unknown source", []Node{{ID: "a"}}, []Edge{{Source: "x", Target: "a"}}, "edges[0]"},
		{"unknown target", []Node{{ID: "a"}}, []Edge{{Source: "a", Target: "x"}}, "edges[0]"},
		{"two parents", []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}, []Edge{{Source: "a", Target: "c"}, {Source: "b", Target: "c"}}, "edges[1]"},
		{"cycle", []Node{{ID: "r"}, {ID: "a"}, {ID: "b"}}, []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}}, "edges"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.nodes, tt.edges)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	nodes, edges := sample()
	assert.NoError(t, Validate(nodes, edges))
}

func TestGraph_ReplaceIsAllOrNothing(t *testing.T) {
	nodes, edges := sample()
	g := NewGraph(nodes, edges)

	err := g.Replace([]Node{{ID: "x"}}, []Edge{{Source: "x", Target: "y"}})
	require.ErrorIs(t, err, ErrValidation)
	assert.Len(t, g.Nodes(), len(nodes))

	require.NoError(t, g.Replace([]Node{{ID: "x"}}, []Edge{}))
	assert.Equal(t, "x", g.RootID())
}

func TestSnapshot_Defaults(t *testing.T) {
	s := NewSnapshot("p1")

	assert.Equal(t, "p1", s.Meta.ID)
	assert.Equal(t, DefaultProjectName, s.Meta.Name)
	assert.Equal(t, "1.0.0", s.Meta.LatestVersion)
	require.Len(t, s.Nodes, 1)
	assert.Equal(t, DefaultRootID, s.Nodes[0].ID)
	assert.Equal(t, "0", s.Annotated().Nodes[0].ComputedCode)
	assert.Empty(t, s.Nodes[0].ComputedCode, "Annotated returns a copy")
}

func TestNewVersionRecord(t *testing.T) {
	nodes, edges := sample()
	s := snap("x", nodes, edges)
	s.Meta.LatestVersion = "1.4.2"

	rec := NewVersionRecord(s, KindPatch, []string{"a"}, Editor{ID: "u1"}, "note", s.UpdatedAt)

	assert.Equal(t, "1.4.2", rec.Version)
	assert.Equal(t, ParseVersion("1.4.2").Ordinal(), rec.Ordinal)
	assert.Equal(t, "1.1", rec.Snapshot.Nodes[2].ComputedCode)
	assert.Equal(t, "u1", rec.Editor.ID)
}
