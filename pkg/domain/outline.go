package domain

import (
	"maps"
	"strconv"
)

// RootCode is the computed code of every root.
const RootCode = "0"

// OutlineNode is a visible node enriched with the fields derived by Process.
// ComputedCode is set on the embedded Node.
type OutlineNode struct {
	Node
	ChildrenIDs    []string          `json:"children_ids"`
	ParentIDs      []string          `json:"parent_ids"`
	AggregatedData map[string]string `json:"aggregated_data"`
	Depth          int               `json:"depth"`
}

// CollapseSet holds ids whose descendants are hidden.
type CollapseSet map[string]bool

// NewCollapseSet builds a set from ids.
func NewCollapseSet(ids ...string) CollapseSet {
	c := make(CollapseSet, len(ids))
	for _, id := range ids {
		c[id] = true
	}
	return c
}

type visitKey struct {
	id     string
	prefix string
}

type processor struct {
	byID      map[string]*Node
	children  map[string][]string
	parents   map[string][]string
	collapsed CollapseSet

	codes   map[string]string
	agg     map[string]map[string]string
	depth   map[string]int
	visited map[visitKey]bool
	emitted map[string]bool
	out     []OutlineNode
}

// Process derives hierarchical codes, inherited payload and visibility from the
// raw graph. It returns the visible nodes in depth-first order, roots in node order
// and children in edge order.
//
// Every root gets code "0", the children of a "0" node are numbered 1, 2, 3 and
// deeper nodes get "<parent>.<n>". A collapsed node stays visible and only its
// descendants are hidden, so codes never depend on the collapse set.
// Malformed input (cycles, multiple parents) is truncated, never rejected; use
// Validate to reject it.
func Process(nodes []Node, edges []Edge, collapsed CollapseSet) []OutlineNode {
	p := &processor{
		byID:      make(map[string]*Node, len(nodes)),
		children:  make(map[string][]string, len(nodes)),
		parents:   make(map[string][]string, len(nodes)),
		collapsed: collapsed,
		codes:     make(map[string]string, len(nodes)),
		agg:       make(map[string]map[string]string, len(nodes)),
		depth:     make(map[string]int, len(nodes)),
		visited:   make(map[visitKey]bool, len(nodes)),
		emitted:   make(map[string]bool, len(nodes)),
	}
	for i := range nodes {
		p.byID[nodes[i].ID] = &nodes[i]
	}
	for _, e := range edges {
		if p.byID[e.Source] == nil || p.byID[e.Target] == nil {
			continue
		}
		p.children[e.Source] = append(p.children[e.Source], e.Target)
		p.parents[e.Target] = append(p.parents[e.Target], e.Source)
	}

	for _, n := range nodes {
		if len(p.parents[n.ID]) == 0 {
			p.visit(n.ID, RootCode, map[string]string{}, 0, false)
		}
	}
	return p.out
}

// Codes returns the computed code of every reachable node, ignoring collapse.
func Codes(nodes []Node, edges []Edge) map[string]string {
	codes := make(map[string]string, len(nodes))
	for _, n := range Process(nodes, edges, nil) {
		codes[n.ID] = n.ComputedCode
	}
	return codes
}

func (p *processor) visit(id, code string, inherited map[string]string, depth int, hidden bool) {
	key := visitKey{id: id, prefix: code}
	if p.visited[key] {
		return
	}
	p.visited[key] = true

	n := p.byID[id]
	if _, ok := p.codes[id]; !ok {
		// First visit wins for nodes reachable along several paths.
		p.codes[id] = code
		agg := maps.Clone(inherited)
		maps.Copy(agg, n.Payload)
		p.agg[id] = agg
		p.depth[id] = depth
	}
	own := p.codes[id]

	if !hidden && !p.emitted[id] {
		p.emitted[id] = true
		out := OutlineNode{
			Node:           n.Clone(),
			ChildrenIDs:    append([]string{}, p.children[id]...),
			ParentIDs:      append([]string{}, p.parents[id]...),
			AggregatedData: maps.Clone(p.agg[id]),
			Depth:          p.depth[id],
		}
		out.ComputedCode = own
		p.out = append(p.out, out)
	}

	childHidden := hidden || p.collapsed[id]
	for i, child := range p.children[id] {
		p.visit(child, childCode(own, i), p.agg[id], depth+1, childHidden)
	}
}

func childCode(parent string, index int) string {
	if parent == RootCode {
		return strconv.Itoa(index + 1)
	}
	return parent + "." + strconv.Itoa(index+1)
}
