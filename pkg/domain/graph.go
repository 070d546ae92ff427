package domain

import (
	"fmt"
	"maps"
	"slices"
)

const (
	// DefaultRootID is the id given to the root of a fresh outline.
	DefaultRootID = "root"
	// DefaultRootLabel is the label of a fresh outline's root.
	DefaultRootLabel = "Start"
	// DefaultRootDescription is the description of a fresh outline's root.
	DefaultRootDescription = "Process start"
	// DefaultNodeLabel is the label editors give a freshly added step.
	DefaultNodeLabel = "New step"
)

// Graph holds the raw node list and ordered edge list of one outline.
// It performs structural guards on mutation but derives nothing; see Process.
type Graph struct {
	nodes []Node
	edges []Edge
}

// NewGraph copies nodes and edges into a new Graph.
func NewGraph(nodes []Node, edges []Edge) *Graph {
	return &Graph{nodes: cloneNodes(nodes), edges: cloneEdges(edges)}
}

// Nodes returns a copy of the node list.
func (g *Graph) Nodes() []Node { return cloneNodes(g.nodes) }

// Edges returns a copy of the edge list.
func (g *Graph) Edges() []Edge { return cloneEdges(g.edges) }

// Clone returns an independent copy.
func (g *Graph) Clone() *Graph { return NewGraph(g.nodes, g.edges) }

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	i := g.indexOf(id)
	if i < 0 {
		return Node{}, false
	}
	return g.nodes[i].Clone(), true
}

// RootID returns the designated root: the first node, in node order, without an
// incoming edge. It is empty for an empty graph or one where every node has a parent.
func (g *Graph) RootID() string {
	return RootID(g.nodes, g.edges)
}

// RootID returns the designated root of the given nodes and edges.
func RootID(nodes []Node, edges []Edge) string {
	hasParent := make(map[string]bool, len(edges))
	for _, e := range edges {
		hasParent[e.Target] = true
	}
	for _, n := range nodes {
		if !hasParent[n.ID] {
			return n.ID
		}
	}
	return ""
}

// AddRoot creates the root of an empty outline.
func (g *Graph) AddRoot(n Node) error {
	if len(g.nodes) > 0 {
		return invariant("add root", "outline already has a root")
	}
	if n.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	g.nodes = append(g.nodes, n.Clone())
	return nil
}

// AddChild appends n as the last child of parentID.
func (g *Graph) AddChild(parentID string, n Node) (Edge, error) {
	if n.ID == "" {
		return Edge{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if g.indexOf(parentID) < 0 {
		return Edge{}, fmt.Errorf("add child under %q: %w", parentID, ErrNodeNotFound)
	}
	if g.indexOf(n.ID) >= 0 {
		return Edge{}, fmt.Errorf("add child %q: %w", n.ID, ErrDuplicateNode)
	}
	e := Edge{ID: EdgeID(parentID, n.ID), Source: parentID, Target: n.ID}
	g.nodes = append(g.nodes, n.Clone())
	g.edges = append(g.edges, e)
	return e, nil
}

// Connect adds an edge from source to target. A node may have only one parent and
// the edge must not close a cycle.
func (g *Graph) Connect(source, target string) (Edge, error) {
	if g.indexOf(source) < 0 {
		return Edge{}, fmt.Errorf("connect from %q: %w", source, ErrNodeNotFound)
	}
	if g.indexOf(target) < 0 {
		return Edge{}, fmt.Errorf("connect to %q: %w", target, ErrNodeNotFound)
	}
	if p, ok := g.parentOf(target); ok {
		return Edge{}, invariant("connect", "node %q already has parent %q", target, p)
	}
	if source == target || g.isDescendant(target, source) {
		return Edge{}, invariant("connect", "edge %s -> %s would create a cycle", source, target)
	}
	e := Edge{ID: EdgeID(source, target), Source: source, Target: target}
	g.edges = append(g.edges, e)
	return e, nil
}

// UpdateNode applies an in-place edit.
func (g *Graph) UpdateNode(id string, p NodePatch) error {
	i := g.indexOf(id)
	if i < 0 {
		return fmt.Errorf("update %q: %w", id, ErrNodeNotFound)
	}
	n := &g.nodes[i]
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.JumpTargetID != nil {
		n.JumpTargetID = *p.JumpTargetID
	}
	if p.Payload != nil {
		n.Payload = maps.Clone(p.Payload)
	}
	if len(p.SetPayload) > 0 {
		if n.Payload == nil {
			n.Payload = make(map[string]string, len(p.SetPayload))
		}
		maps.Copy(n.Payload, p.SetPayload)
	}
	for _, k := range p.UnsetPayload {
		delete(n.Payload, k)
	}
	return nil
}

// DeleteNode removes the node and every edge where it is source or target.
// Its children become roots. The designated root cannot be deleted.
func (g *Graph) DeleteNode(id string) error {
	if g.indexOf(id) < 0 {
		return fmt.Errorf("delete %q: %w", id, ErrNodeNotFound)
	}
	if id == g.RootID() {
		return invariant("delete", "root node %q cannot be deleted", id)
	}
	g.removeNodes(map[string]bool{id: true})
	return nil
}

// DeleteSubtree removes the node together with all of its descendants.
func (g *Graph) DeleteSubtree(id string) error {
	if g.indexOf(id) < 0 {
		return fmt.Errorf("delete subtree %q: %w", id, ErrNodeNotFound)
	}
	if id == g.RootID() {
		return invariant("delete subtree", "root node %q cannot be deleted", id)
	}
	doomed := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.edges {
			if e.Source == cur && !doomed[e.Target] {
				doomed[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}
	g.removeNodes(doomed)
	return nil
}

// SetEdges replaces the edge list, typically with the result of Reorder.
func (g *Graph) SetEdges(edges []Edge) {
	g.edges = cloneEdges(edges)
}

// Replace swaps the whole content after it passes Validate.
func (g *Graph) Replace(nodes []Node, edges []Edge) error {
	if err := Validate(nodes, edges); err != nil {
		return err
	}
	g.nodes = cloneNodes(nodes)
	g.edges = cloneEdges(edges)
	return nil
}

// Validate checks that nodes and edges form a forest: unique non-empty ids, no
// dangling edge endpoints, at most one parent per node and no cycles.
func Validate(nodes []Node, edges []Edge) error {
	ids := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("nodes[%d].id", i), Reason: "must not be empty"}
		}
		if ids[n.ID] {
			return &ValidationError{Field: fmt.Sprintf("nodes[%d].id", i), Reason: fmt.Sprintf("duplicate id %q", n.ID)}
		}
		ids[n.ID] = true
	}
	parent := make(map[string]string, len(edges))
	for i, e := range edges {
		field := fmt.Sprintf("edges[%d]", i)
		if !ids[e.Source] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown source %q", e.Source)}
		}
		if !ids[e.Target] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown target %q", e.Target)}
		}
		if p, ok := parent[e.Target]; ok {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("node %q has two parents (%q, %q)", e.Target, p, e.Source)}
		}
		parent[e.Target] = e.Source
	}
	// With one parent per node, a cycle shows up as a parent chain that never ends.
	for id := range ids {
		seen := map[string]bool{id: true}
		for cur, ok := parent[id]; ok; cur, ok = parent[cur] {
			if seen[cur] {
				return &ValidationError{Field: "edges", Reason: fmt.Sprintf("cycle through node %q", cur)}
			}
			seen[cur] = true
		}
	}
	return nil
}

// EdgeID builds the id of the edge created when child is attached to parent.
func EdgeID(parent, child string) string {
	return "e" + parent + "-" + child
}

func (g *Graph) indexOf(id string) int {
	return slices.IndexFunc(g.nodes, func(n Node) bool { return n.ID == id })
}

func (g *Graph) parentOf(id string) (string, bool) {
	for _, e := range g.edges {
		if e.Target == id {
			return e.Source, true
		}
	}
	return "", false
}

// isDescendant reports whether candidate lies in the subtree below ancestor.
func (g *Graph) isDescendant(ancestor, candidate string) bool {
	return isDescendant(g.edges, ancestor, candidate)
}

func isDescendant(edges []Edge, ancestor, candidate string) bool {
	seen := map[string]bool{ancestor: true}
	queue := []string{ancestor}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range edges {
			if e.Source != cur || seen[e.Target] {
				continue
			}
			if e.Target == candidate {
				return true
			}
			seen[e.Target] = true
			queue = append(queue, e.Target)
		}
	}
	return false
}

func (g *Graph) removeNodes(doomed map[string]bool) {
	g.nodes = slices.DeleteFunc(g.nodes, func(n Node) bool { return doomed[n.ID] })
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool { return doomed[e.Source] || doomed[e.Target] })
}
