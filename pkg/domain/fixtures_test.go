package domain

// sample builds:
//
//	root (0)
//	├── a (1)        payload team=ops
//	│   ├── a1 (1.1) payload team=qa, tool=drill
//	│   └── a2 (1.2)
//	└── b (2)
//	    └── b1 (2.1)
func sample() ([]Node, []Edge) {
	nodes := []Node{
		{ID: "root", Label: "Start", Payload: map[string]string{"site": "plant-1"}},
		{ID: "a", Label: "Prepare", Payload: map[string]string{"team": "ops"}},
		{ID: "a1", Label: "Check", Payload: map[string]string{"team": "qa", "tool": "drill"}},
		{ID: "a2", Label: ""},
		{ID: "b", Label: "Run"},
		{ID: "b1", Label: "Report", JumpTargetID: "a"},
	}
	edges := []Edge{
		{ID: "e1", Source: "root", Target: "a"},
		{ID: "e2", Source: "a", Target: "a1"},
		{ID: "e3", Source: "root", Target: "b"},
		{ID: "e4", Source: "a", Target: "a2"},
		{ID: "e5", Source: "b", Target: "b1"},
	}
	return nodes, edges
}

func codesOf(out []OutlineNode) map[string]string {
	m := make(map[string]string, len(out))
	for _, n := range out {
		m[n.ID] = n.ComputedCode
	}
	return m
}

func idsOf(out []OutlineNode) []string {
	ids := make([]string, len(out))
	for i, n := range out {
		ids[i] = n.ID
	}
	return ids
}

func fixedEdgeID(parent, child string) string {
	return "new-" + parent + "-" + child
}
