package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Codes(t *testing.T) {
	nodes := []Node{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	edges := []Edge{{ID: "1", Source: "A", Target: "B"}, {ID: "2", Source: "A", Target: "C"}}

	out := Process(nodes, edges, nil)

	assert.Equal(t, map[string]string{"A": "0", "B": "1", "C": "2"}, codesOf(out))
	assert.Equal(t, []string{"A", "B", "C"}, idsOf(out))
}

func TestProcess_NestedCodesFollowEdgeOrder(t *testing.T) {
	nodes, edges := sample()

	out := Process(nodes, edges, nil)

	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "b1"}, idsOf(out))
	assert.Equal(t, map[string]string{
		"root": "0", "a": "1", "a1": "1.1", "a2": "1.2", "b": "2", "b1": "2.1",
	}, codesOf(out))
	assert.Equal(t, 2, out[2].Depth)
}

func TestProcess_AdjacencyFields(t *testing.T) {
	nodes, edges := sample()

	out := Process(nodes, edges, nil)

	byID := map[string]OutlineNode{}
	for _, n := range out {
		byID[n.ID] = n
	}
	assert.Equal(t, []string{"a", "b"}, byID["root"].ChildrenIDs)
	assert.Equal(t, []string{"a1", "a2"}, byID["a"].ChildrenIDs)
	assert.Equal(t, []string{"a"}, byID["a2"].ParentIDs)
	assert.Empty(t, byID["root"].ParentIDs)
}

func TestProcess_Aggregation(t *testing.T) {
	nodes, edges := sample()

	out := Process(nodes, edges, nil)

	byID := map[string]OutlineNode{}
	for _, n := range out {
		byID[n.ID] = n
	}
	assert.Equal(t, map[string]string{"site": "plant-1"}, byID["root"].AggregatedData)
	assert.Equal(t, map[string]string{"site": "plant-1", "team": "ops"}, byID["a"].AggregatedData)
	assert.Equal(t, map[string]string{"site": "plant-1", "team": "qa", "tool": "drill"}, byID["a1"].AggregatedData, "own keys override inherited")
	assert.Equal(t, map[string]string{"site": "plant-1", "team": "ops"}, byID["a2"].AggregatedData, "sibling must not see a1's payload")
	assert.Equal(t, map[string]string{"site": "plant-1"}, byID["b1"].AggregatedData)
}

func TestProcess_AggregationDoesNotShareMaps(t *testing.T) {
	nodes, edges := sample()

	out := Process(nodes, edges, nil)
	out[1].AggregatedData["team"] = "mutated"

	again := Process(nodes, edges, nil)
	assert.Equal(t, "ops", again[1].AggregatedData["team"])
	assert.Equal(t, "ops", nodes[1].Payload["team"], "input payload untouched")
}

func TestProcess_CollapseHidesDescendantsOnly(t *testing.T) {
	nodes := []Node{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	edges := []Edge{{Source: "A", Target: "B"}, {Source: "A", Target: "C"}}

	collapsed := Process(nodes, edges, NewCollapseSet("A"))
	require.Len(t, collapsed, 1)
	assert.Equal(t, "A", collapsed[0].ID, "the collapsed node itself stays visible")

	full := Process(nodes, edges, NewCollapseSet())
	assert.Equal(t, map[string]string{"A": "0", "B": "1", "C": "2"}, codesOf(full))
}

func TestProcess_CollapseIsTransitive(t *testing.T) {
	nodes, edges := sample()

	out := Process(nodes, edges, NewCollapseSet("a"))

	assert.Equal(t, []string{"root", "a", "b", "b1"}, idsOf(out))
}

func TestProcess_CollapseNeverRenumbers(t *testing.T) {
	nodes, edges := sample()
	full := codesOf(Process(nodes, edges, nil))

	for _, set := range []CollapseSet{
		NewCollapseSet("a"),
		NewCollapseSet("b"),
		NewCollapseSet("a", "b"),
		NewCollapseSet("root"),
		NewCollapseSet("a1", "unknown"),
	} {
		for _, n := range Process(nodes, edges, set) {
			assert.Equal(t, full[n.ID], n.ComputedCode, "node %s under %v", n.ID, set)
		}
	}
}

func TestProcess_OrphansAreRoots(t *testing.T) {
	nodes := []Node{{ID: "root"}, {ID: "x"}, {ID: "orphan"}, {ID: "child"}}
	edges := []Edge{{Source: "root", Target: "x"}, {Source: "orphan", Target: "child"}}

	out := Process(nodes, edges, nil)

	assert.Equal(t, []string{"root", "x", "orphan", "child"}, idsOf(out))
	assert.Equal(t, "0", codesOf(out)["orphan"])
	assert.Equal(t, "1", codesOf(out)["child"])
}

func TestProcess_TerminatesOnMalformedGraphs(t *testing.T) {
	t.Run("cycle below a root", func(t *testing.T) {
		nodes := []Node{{ID: "r"}, {ID: "a"}, {ID: "b"}}
		edges := []Edge{{Source: "r", Target: "a"}, {Source: "a", Target: "b"}, {Source: "b", Target: "a"}}

		out := Process(nodes, edges, nil)

		assert.Equal(t, []string{"r", "a", "b"}, idsOf(out))
		assert.Equal(t, "1", codesOf(out)["a"])
	})

	t.Run("pure cycle has no roots", func(t *testing.T) {
		nodes := []Node{{ID: "a"}, {ID: "b"}}
		edges := []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}}

		assert.Empty(t, Process(nodes, edges, nil))
	})

	t.Run("two parents emit once", func(t *testing.T) {
		nodes := []Node{{ID: "r"}, {ID: "a"}, {ID: "b"}, {ID: "shared"}}
		edges := []Edge{
			{Source: "r", Target: "a"}, {Source: "r", Target: "b"},
			{Source: "a", Target: "shared"}, {Source: "b", Target: "shared"},
		}

		out := Process(nodes, edges, nil)

		assert.Equal(t, []string{"r", "a", "shared", "b"}, idsOf(out))
		assert.Equal(t, "1.1", codesOf(out)["shared"])
	})

	t.Run("dangling edges are ignored", func(t *testing.T) {
		nodes := []Node{{ID: "r"}}
		edges := []Edge{{Source: "r", Target: "ghost"}}

		out := Process(nodes, edges, nil)

		require.Len(t, out, 1)
		assert.Empty(t, out[0].ChildrenIDs)
	})
}

func TestProcess_DeletedNodeNeverReferenced(t *testing.T) {
	nodes, edges := sample()
	g := NewGraph(nodes, edges)
	require.NoError(t, g.DeleteNode("a"))

	for _, n := range Process(g.Nodes(), g.Edges(), nil) {
		assert.NotEqual(t, "a", n.ID)
		assert.NotContains(t, n.ChildrenIDs, "a")
		assert.NotContains(t, n.ParentIDs, "a")
	}
}
