package domain

// TreeEntry is one node of the renderable hierarchy.
type TreeEntry struct {
	Key      string      `json:"key"`
	Title    string      `json:"title"`
	Code     string      `json:"code"`
	JumpTo   string      `json:"jump_to,omitempty"`
	Draft    bool        `json:"draft,omitempty"`
	Children []TreeEntry `json:"children,omitempty"`
}

// BuildTree builds one entry per root (a node without an incoming edge), with
// children in edge order. It ignores collapse and never computes codes: nodes must
// already carry ComputedCode, as returned by Process with an empty collapse set.
func BuildTree(nodes []OutlineNode, edges []Edge) []TreeEntry {
	byID := make(map[string]*OutlineNode, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}
	hasParent := make(map[string]bool, len(edges))
	children := make(map[string][]string, len(nodes))
	for _, e := range edges {
		hasParent[e.Target] = true
		children[e.Source] = append(children[e.Source], e.Target)
	}

	var build func(id string, path map[string]bool) TreeEntry
	build = func(id string, path map[string]bool) TreeEntry {
		n := byID[id]
		entry := TreeEntry{
			Key:    n.ID,
			Title:  n.Title(),
			Code:   n.ComputedCode,
			JumpTo: n.JumpTargetID,
			Draft:  n.IsDraft(),
		}
		path[id] = true
		for _, c := range children[id] {
			if byID[c] == nil || path[c] {
				continue
			}
			entry.Children = append(entry.Children, build(c, path))
		}
		delete(path, id)
		return entry
	}

	var roots []TreeEntry
	for _, n := range nodes {
		if !hasParent[n.ID] {
			roots = append(roots, build(n.ID, map[string]bool{}))
		}
	}
	return roots
}
