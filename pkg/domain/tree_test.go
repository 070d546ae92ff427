package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTree(t *testing.T) {
	nodes, edges := sample()
	enriched := Process(nodes, edges, nil)

	tree := BuildTree(enriched, edges)

	require.Len(t, tree, 1)
	root := tree[0]
	assert.Equal(t, "root", root.Key)
	assert.Equal(t, "0", root.Code)
	require.Len(t, root.Children, 2)

	a := root.Children[0]
	assert.Equal(t, TreeEntry{Key: "a1", Title: "Check", Code: "1.1"}, a.Children[0])
	assert.Equal(t, TreeEntry{Key: "a2", Title: DraftTitle, Code: "1.2", Draft: true}, a.Children[1])

	b := root.Children[1]
	assert.Equal(t, "Run", b.Title)
	assert.Equal(t, "a", b.Children[0].JumpTo)
}

func TestBuildTree_IgnoresCollapseAndKeepsCodes(t *testing.T) {
	nodes, edges := sample()
	enriched := Process(nodes, edges, nil)

	before := BuildTree(enriched, edges)
	_ = Process(nodes, edges, NewCollapseSet("a"))
	after := BuildTree(enriched, edges)

	assert.Equal(t, before, after)
}

func TestBuildTree_MultipleRoots(t *testing.T) {
	nodes := []Node{{ID: "r", Label: "R"}, {ID: "o", Label: "O"}, {ID: "c", Label: "C"}}
	edges := []Edge{{Source: "o", Target: "c"}}

	tree := BuildTree(Process(nodes, edges, nil), edges)

	require.Len(t, tree, 2)
	assert.Equal(t, "r", tree[0].Key)
	assert.Equal(t, "o", tree[1].Key)
	assert.Equal(t, "c", tree[1].Children[0].Key)
}

func TestBuildTree_StopsOnCycles(t *testing.T) {
	nodes := []Node{{ID: "r"}, {ID: "a"}, {ID: "b"}}
	edges := []Edge{{Source: "r", Target: "a"}, {Source: "a", Target: "b"}, {Source: "b", Target: "a"}}

	tree := BuildTree(Process(nodes, edges, nil), edges)

	require.Len(t, tree, 1)
	b := tree[0].Children[0].Children[0]
	assert.Equal(t, "b", b.Key)
	assert.Empty(t, b.Children)
}
