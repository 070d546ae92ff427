package domain

import (
	"fmt"
	"maps"
)

// Change log entries that carry no node detail.
const (
	InitialVersionEntry   = "initial version"
	StructureChangedEntry = "structure changed (edges added, removed or moved)"
)

// ChangeLog describes how newSnap differs from oldSnap, in a fixed order: rename,
// then each new node (added, or one entry per changed field in the order label,
// description, jump target, payload), then removed nodes, then at most one
// structure entry. A nil oldSnap yields only the initial version entry.
//
// Node codes are derived from each snapshot's own graph, so removed nodes are
// named by their old position.
func ChangeLog(oldSnap, newSnap *Snapshot) []string {
	if oldSnap == nil {
		return []string{InitialVersionEntry}
	}
	if newSnap == nil {
		return nil
	}

	var log []string
	if oldSnap.Meta.Name != newSnap.Meta.Name {
		log = append(log, fmt.Sprintf("renamed outline from %q to %q", oldSnap.Meta.Name, newSnap.Meta.Name))
	}

	oldCodes := Codes(oldSnap.Nodes, oldSnap.Edges)
	newCodes := Codes(newSnap.Nodes, newSnap.Edges)

	oldByID := make(map[string]Node, len(oldSnap.Nodes))
	for _, n := range oldSnap.Nodes {
		oldByID[n.ID] = n
	}
	newIDs := make(map[string]bool, len(newSnap.Nodes))

	for _, n := range newSnap.Nodes {
		newIDs[n.ID] = true
		ref := nodeRef(n, newCodes[n.ID])
		prev, ok := oldByID[n.ID]
		if !ok {
			log = append(log, "added "+ref)
			continue
		}
		if prev.Label != n.Label {
			log = append(log, fmt.Sprintf("%s: label changed from %q to %q", ref, prev.Label, n.Label))
		}
		if prev.Description != n.Description {
			log = append(log, fmt.Sprintf("%s: description changed", ref))
		}
		if prev.JumpTargetID != n.JumpTargetID {
			log = append(log, fmt.Sprintf("%s: jump target changed from %q to %q", ref, prev.JumpTargetID, n.JumpTargetID))
		}
		if !maps.Equal(prev.Payload, n.Payload) {
			log = append(log, fmt.Sprintf("%s: payload changed", ref))
		}
	}

	for _, n := range oldSnap.Nodes {
		if !newIDs[n.ID] {
			log = append(log, "removed "+nodeRef(n, oldCodes[n.ID]))
		}
	}

	if structureChanged(oldSnap.Edges, newSnap.Edges) {
		log = append(log, StructureChangedEntry)
	}
	return log
}

// HasContentChanged reports whether ChangeLog would return any entry.
func HasContentChanged(oldSnap, newSnap *Snapshot) bool {
	return len(ChangeLog(oldSnap, newSnap)) > 0
}

func nodeRef(n Node, code string) string {
	if code == "" {
		code = "?"
	}
	return fmt.Sprintf("node [%s] %s (ID:%s)", code, n.Title(), n.ShortID())
}

type link struct{ source, target string }

// structureChanged compares edges as unordered (source, target) pairs.
func structureChanged(oldEdges, newEdges []Edge) bool {
	if len(oldEdges) != len(newEdges) {
		return true
	}
	oldSet := make(map[link]bool, len(oldEdges))
	for _, e := range oldEdges {
		oldSet[link{e.Source, e.Target}] = true
	}
	newSet := make(map[link]bool, len(newEdges))
	for _, e := range newEdges {
		l := link{e.Source, e.Target}
		if !oldSet[l] {
			return true
		}
		newSet[l] = true
	}
	return len(oldSet) != len(newSet)
}
