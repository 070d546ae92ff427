package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/outline/internal/presentation/document"
	"github.com/aretw0/outline/internal/presentation/graph"
	"github.com/aretw0/outline/internal/presentation/tui"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the visible outline of a project",
	Long: `Prints one line per visible step with its hierarchical code, inherited data
and jump target. Markdown output is rendered with glamour on a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		collapse, _ := cmd.Flags().GetStringSlice("collapse")
		return withSnapshot(cmd, func(ctx context.Context, snap *domain.Snapshot) error {
			return renderSnapshot(cmd.OutOrStdout(), snap, domain.NewCollapseSet(collapse...), format)
		})
	},
}

// renderSnapshot writes the document view in text, markdown or json.
func renderSnapshot(w io.Writer, snap *domain.Snapshot, collapsed domain.CollapseSet, format string) error {
	if format == "json" {
		return writeJSON(w, domain.Process(snap.Nodes, snap.Edges, collapsed))
	}
	f, err := document.ParseFormat(format)
	if err != nil {
		return err
	}
	out := document.Render(snap, collapsed, f)
	if file, ok := w.(*os.File); ok && f == document.FormatMarkdown {
		out = tui.Present(file, out)
	}
	_, err = io.WriteString(w, out)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the full hierarchy, ignoring collapse",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withSnapshot(cmd, func(ctx context.Context, snap *domain.Snapshot) error {
			tree := domain.BuildTree(domain.Process(snap.Nodes, snap.Edges, nil), snap.Edges)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tree)
			}
			var sb strings.Builder
			writeTree(&sb, tree, 0)
			_, err := io.WriteString(cmd.OutOrStdout(), sb.String())
			return err
		})
	},
}

func writeTree(sb *strings.Builder, entries []domain.TreeEntry, depth int) {
	for _, e := range entries {
		fmt.Fprintf(sb, "%s%s %s", strings.Repeat("  ", depth), e.Code, e.Title)
		if e.JumpTo != "" {
			fmt.Fprintf(sb, " -> %s", e.JumpTo)
		}
		sb.WriteString("\n")
		writeTree(sb, e.Children, depth+1)
	}
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the outline as a Mermaid flowchart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		collapse, _ := cmd.Flags().GetStringSlice("collapse")
		selected, _ := cmd.Flags().GetString("selected")
		return withSnapshot(cmd, func(ctx context.Context, snap *domain.Snapshot) error {
			var overlay *graph.Overlay
			if selected != "" {
				overlay = &graph.Overlay{Selected: selected}
			}
			_, err := io.WriteString(cmd.OutOrStdout(), graph.GenerateMermaid(snap, domain.NewCollapseSet(collapse...), overlay))
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(graphCmd)

	showCmd.Flags().String("format", "text", "Output format: text, markdown or json")
	showCmd.Flags().StringSlice("collapse", nil, "Node IDs whose descendants are hidden")
	treeCmd.Flags().Bool("json", false, "Print the tree as JSON")
	graphCmd.Flags().StringSlice("collapse", nil, "Node IDs whose descendants are hidden")
	graphCmd.Flags().String("selected", "", "Node ID to highlight")
}
