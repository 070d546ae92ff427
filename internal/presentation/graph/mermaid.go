package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/outline/pkg/domain"
)

// Overlay contains view state to highlight on the graph.
type Overlay struct {
	Selected string
}

// GenerateMermaid produces a Mermaid flowchart of the visible outline.
// Shapes:
// - Root: ((Circle))
// - Node with a jump target: [[Subroutine]]
// - Default: [Rectangle]
// Jump targets are drawn as dotted arrows. Collapsed nodes with hidden
// children are dashed.
func GenerateMermaid(snap *domain.Snapshot, collapsed domain.CollapseSet, overlay *Overlay) string {
	visible := domain.Process(snap.Nodes, snap.Edges, collapsed)
	shown := make(map[string]bool, len(visible))
	for _, n := range visible {
		shown[n.ID] = true
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, n := range visible {
		opener, closer := "[", "]"
		switch {
		case n.ComputedCode == domain.RootCode:
			opener, closer = "((", "))"
		case n.JumpTargetID != "":
			opener, closer = "[[", "]]"
		}
		label := strings.ReplaceAll(n.ComputedCode+" "+n.Title(), "\"", "'")
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(n.ID), opener, label, closer)
	}

	for _, e := range snap.Edges {
		if shown[e.Source] && shown[e.Target] {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target))
		}
	}
	for _, n := range visible {
		if n.JumpTargetID != "" && shown[n.JumpTargetID] {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", sanitizeMermaidID(n.ID), sanitizeMermaidID(n.JumpTargetID))
		}
	}

	var folded []string
	for _, n := range visible {
		if collapsed[n.ID] && len(n.ChildrenIDs) > 0 {
			folded = append(folded, sanitizeMermaidID(n.ID))
		}
	}
	selected := ""
	if overlay != nil && shown[overlay.Selected] {
		selected = sanitizeMermaidID(overlay.Selected)
	}
	if len(folded) == 0 && selected == "" {
		return sb.String()
	}

	sb.WriteString("\n    %% Styles\n")
	if len(folded) > 0 {
		sb.WriteString("    classDef collapsed stroke-dasharray:5 5;\n")
		for _, id := range folded {
			fmt.Fprintf(&sb, "    class %s collapsed;\n", id)
		}
	}
	if selected != "" {
		// Black text stays readable on both light and dark themes.
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s selected;\n", selected)
	}
	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
