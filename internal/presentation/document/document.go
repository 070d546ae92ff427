// Package document renders the visible outline as an indented document.
package document

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/outline/pkg/domain"
)

// Format selects the document dialect.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts text, markdown or md.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown document format %q", s)
}

// Render returns one line per visible node. Nodes are indented by the number
// of code segments minus one, followed by their inherited data and a jump
// marker pointing at the target's code.
func Render(snap *domain.Snapshot, collapsed domain.CollapseSet, format Format) string {
	visible := domain.Process(snap.Nodes, snap.Edges, collapsed)
	codes := domain.Codes(snap.Nodes, snap.Edges)

	var sb strings.Builder
	if format == FormatMarkdown {
		fmt.Fprintf(&sb, "# %s\n\nVersion %s\n\n", snap.Meta.Name, domain.ParseVersion(snap.Meta.LatestVersion))
	} else {
		fmt.Fprintf(&sb, "%s (v%s)\n", snap.Meta.Name, domain.ParseVersion(snap.Meta.LatestVersion))
	}

	for _, n := range visible {
		level := strings.Count(n.ComputedCode, ".")
		folded := collapsed[n.ID] && len(n.ChildrenIDs) > 0
		if format == FormatMarkdown {
			writeMarkdownLine(&sb, n, level, folded, codes)
		} else {
			writeTextLine(&sb, n, level, folded, codes)
		}
	}
	return sb.String()
}

func writeTextLine(sb *strings.Builder, n domain.OutlineNode, level int, folded bool, codes map[string]string) {
	sb.WriteString(strings.Repeat("  ", level))
	sb.WriteString(n.ComputedCode)
	sb.WriteString(" ")
	sb.WriteString(n.Title())
	if folded {
		sb.WriteString(" [+]")
	}
	if len(n.AggregatedData) > 0 {
		sb.WriteString(" {")
		sb.WriteString(strings.Join(pairs(n.AggregatedData), ", "))
		sb.WriteString("}")
	}
	if n.JumpTargetID != "" {
		sb.WriteString(" -> ")
		sb.WriteString(jumpCode(n.JumpTargetID, codes))
	}
	sb.WriteString("\n")
}

func writeMarkdownLine(sb *strings.Builder, n domain.OutlineNode, level int, folded bool, codes map[string]string) {
	sb.WriteString(strings.Repeat("  ", level))
	fmt.Fprintf(sb, "- **%s** ", n.ComputedCode)
	if n.IsDraft() {
		fmt.Fprintf(sb, "_%s_", domain.DraftTitle)
	} else {
		sb.WriteString(n.Label)
	}
	if n.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(n.Description)
	}
	if folded {
		sb.WriteString(" [+]")
	}
	for _, p := range pairs(n.AggregatedData) {
		fmt.Fprintf(sb, " `%s`", p)
	}
	if n.JumpTargetID != "" {
		fmt.Fprintf(sb, " -> **%s**", jumpCode(n.JumpTargetID, codes))
	}
	sb.WriteString("\n")
}

func pairs(data map[string]string) []string {
	keys := slices.Sorted(maps.Keys(data))
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + data[k]
	}
	return out
}

// jumpCode resolves a jump target. Unknown or unreachable targets render as "?".
func jumpCode(id string, codes map[string]string) string {
	if c, ok := codes[id]; ok && c != "" {
		return c
	}
	return "?"
}
