package domain

import "maps"

// DraftTitle is shown in place of an empty label.
const DraftTitle = "(untitled draft)"

// Node is a single step of the procedure outline.
type Node struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Payload holds the node's own key-value data. Descendants inherit it.
	Payload map[string]string `json:"payload,omitempty" yaml:"payload,omitempty"`

	// JumpTargetID is a display-only reference to another node.
	JumpTargetID string `json:"jump_target_id,omitempty" yaml:"jump_target_id,omitempty"`

	// ComputedCode is derived by Process. Stored copies are for audit readability
	// only and are never read back as authoritative.
	ComputedCode string `json:"computed_code,omitempty" yaml:"computed_code,omitempty"`
}

// IsDraft reports whether the node has no label yet.
func (n Node) IsDraft() bool {
	return n.Label == ""
}

// Title returns the label or the draft placeholder.
func (n Node) Title() string {
	if n.IsDraft() {
		return DraftTitle
	}
	return n.Label
}

// Clone returns a copy that shares no mutable state with n.
func (n Node) Clone() Node {
	out := n
	if n.Payload != nil {
		out.Payload = maps.Clone(n.Payload)
	}
	return out
}

// ShortID returns the first eight characters of the id.
func (n Node) ShortID() string {
	if len(n.ID) <= 8 {
		return n.ID
	}
	return n.ID[:8]
}

// Edge is an ordered parent to child relation. The position of an edge among the
// edges sharing its Source defines sibling order.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source" validate:"required"`
	Target string `json:"target" yaml:"target" validate:"required"`
}

// NodePatch describes an in-place edit. Nil fields are left untouched.
type NodePatch struct {
	Label        *string           `json:"label,omitempty"`
	Description  *string           `json:"description,omitempty"`
	JumpTargetID *string           `json:"jump_target_id,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
	// SetPayload merges keys into the existing payload.
	SetPayload map[string]string `json:"set_payload,omitempty"`
	// UnsetPayload removes keys from the payload.
	UnsetPayload []string `json:"unset_payload,omitempty"`
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}
