package domain

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DropMode says where a dragged node lands relative to the drop target.
type DropMode string

const (
	// DropOnto makes the dragged node the last child of the target.
	DropOnto DropMode = "onto"
	// DropBefore makes the dragged node the target's previous sibling.
	DropBefore DropMode = "before"
	// DropAfter makes the dragged node the target's next sibling.
	DropAfter DropMode = "after"
)

// ParseDropMode accepts the mode names case-insensitively.
func ParseDropMode(s string) (DropMode, error) {
	switch m := DropMode(strings.ToLower(strings.TrimSpace(s))); m {
	case DropOnto, DropBefore, DropAfter:
		return m, nil
	}
	return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown drop mode %q", s)}
}

// DragIntent describes one drag and drop gesture.
type DragIntent struct {
	DraggedID string   `json:"dragged_id" validate:"required"`
	TargetID  string   `json:"target_id" validate:"required"`
	Mode      DropMode `json:"mode" validate:"required,oneof=onto before after"`
}

// EdgeIDFunc produces a fresh id for the edge attaching child to parent.
type EdgeIDFunc func(parent, child string) string

// NewEdgeID returns a unique edge id.
func NewEdgeID(parent, child string) string {
	return EdgeID(parent, child) + "-" + uuid.NewString()
}

// Reorder moves the dragged node according to the intent and returns the new edge
// list: edges of untouched parents in their original relative order, followed by
// the new parent's child edges in their new order.
//
// On an *InvariantError the returned slice is the input edges, unchanged.
// Codes are not recomputed here; run Process on the result.
func Reorder(nodes []Node, edges []Edge, intent DragIntent, newID EdgeIDFunc) ([]Edge, error) {
	if newID == nil {
		newID = NewEdgeID
	}
	root := RootID(nodes, edges)
	dragged, target := intent.DraggedID, intent.TargetID

	if dragged == root {
		return edges, invariant("reorder", "root %q is immovable", dragged)
	}
	if target == root && intent.Mode != DropOnto {
		return edges, invariant("reorder", "root must remain unique and cannot gain siblings")
	}
	if !slices.ContainsFunc(nodes, func(n Node) bool { return n.ID == dragged }) {
		return edges, invariant("reorder", "dragged node %q does not exist", dragged)
	}
	if dragged == target || isDescendant(edges, dragged, target) {
		return edges, invariant("reorder", "node %q cannot be dropped into its own subtree", dragged)
	}

	remaining := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Target != dragged {
			remaining = append(remaining, e)
		}
	}

	var parent string
	var insertAt int
	switch intent.Mode {
	case DropOnto:
		if !slices.ContainsFunc(nodes, func(n Node) bool { return n.ID == target }) {
			return edges, invariant("reorder", "drop target %q does not exist", target)
		}
		parent = target
		insertAt = countChildren(remaining, parent)
	case DropBefore, DropAfter:
		i := slices.IndexFunc(remaining, func(e Edge) bool { return e.Target == target })
		if i < 0 {
			return edges, invariant("reorder", "drop target %q has no parent edge", target)
		}
		parent = remaining[i].Source
		pos := 0
		for _, e := range remaining {
			if e.Source != parent {
				continue
			}
			if e.Target == target {
				break
			}
			pos++
		}
		insertAt = pos
		if intent.Mode == DropAfter {
			insertAt++
		}
	default:
		return edges, invariant("reorder", "unknown drop mode %q", intent.Mode)
	}

	others := make([]Edge, 0, len(remaining))
	siblings := make([]Edge, 0, len(remaining))
	for _, e := range remaining {
		if e.Source == parent {
			siblings = append(siblings, e)
		} else {
			others = append(others, e)
		}
	}
	moved := Edge{ID: newID(parent, dragged), Source: parent, Target: dragged}
	siblings = slices.Insert(siblings, insertAt, moved)

	return append(others, siblings...), nil
}

func countChildren(edges []Edge, parent string) int {
	n := 0
	for _, e := range edges {
		if e.Source == parent {
			n++
		}
	}
	return n
}
