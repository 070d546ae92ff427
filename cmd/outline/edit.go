package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/outline/internal/cli"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/exchange"
	"github.com/aretw0/outline/pkg/session"
	"github.com/spf13/cobra"
)

// commitDraft saves the edit as a patch version and reports it.
func commitDraft(ctx context.Context, cmd *cobra.Command, s *session.Session, remark string) error {
	rec, err := s.Checkpoint(ctx, domain.KindPatch, remark)
	if err != nil {
		return err
	}
	cli.PrintSystemMessage(cmd.OutOrStdout(), "Saved '%s' as version %s.", s.ID(), rec.Version)
	for _, line := range rec.ChangeLog {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", line)
	}
	return nil
}

var addCmd = &cobra.Command{
	Use:   "add <parent-id> [label]",
	Short: "Append a step under a parent",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		desc, _ := cmd.Flags().GetString("description")
		payload, _ := cmd.Flags().GetStringToString("set")
		jump, _ := cmd.Flags().GetString("jump")
		node := domain.Node{ID: id, Description: desc, Payload: payload, JumpTargetID: jump}
		if len(args) > 1 {
			node.Label = args[1]
		}
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			added, err := s.AddChild(args[0], node)
			if err != nil {
				return err
			}
			return commitDraft(ctx, cmd, s, "add "+added.ID)
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <node-id>",
	Short: "Remove a step; its children become separate roots unless --subtree is set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subtree, _ := cmd.Flags().GetBool("subtree")
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.DeleteNode(args[0], subtree); err != nil {
				return err
			}
			return commitDraft(ctx, cmd, s, "rm "+args[0])
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <dragged-id> <target-id>",
	Short: "Move a step onto, before or after another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawMode, _ := cmd.Flags().GetString("mode")
		mode, err := domain.ParseDropMode(rawMode)
		if err != nil {
			return err
		}
		intent := domain.DragIntent{DraggedID: args[0], TargetID: args[1], Mode: mode}
		if err := exchange.ValidateStruct(&intent); err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.Reorder(intent); err != nil {
				return err
			}
			return commitDraft(ctx, cmd, s, fmt.Sprintf("move %s %s %s", intent.DraggedID, intent.Mode, intent.TargetID))
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Rename the project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.Rename(args[0]); err != nil {
				return err
			}
			return commitDraft(ctx, cmd, s, "rename")
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the outline with a JSON or YAML document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := exchange.Decode(data, exchange.FormatFromPath(args[0]))
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			if err := s.Import(doc.Nodes, doc.Edges, doc.Name()); err != nil {
				return err
			}
			return commitDraft(ctx, cmd, s, "import "+args[0])
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored outline as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		rawFormat, _ := cmd.Flags().GetString("format")
		format := exchange.FormatFromPath(out)
		if rawFormat != "" {
			f, err := exchange.ParseFormat(rawFormat)
			if err != nil {
				return err
			}
			format = f
		}
		return withSnapshot(cmd, func(ctx context.Context, snap *domain.Snapshot) error {
			data, err := exchange.Encode(snap, format)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0644)
		})
	},
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Commit the project as a draft, archive or published version",
	Long: `draft (patch) and archive (minor) bump the project's own version.
publish (major) forks a new project seeded from the current content.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawKind, _ := cmd.Flags().GetString("kind")
		remark, _ := cmd.Flags().GetString("remark")
		kind, err := domain.ParseCheckpointKind(rawKind)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			rec, err := s.Checkpoint(ctx, kind, remark)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if kind == domain.KindMajor {
				cli.PrintSystemMessage(w, "Published '%s' as project '%s' version %s.", s.ID(), rec.Snapshot.Meta.ID, rec.Version)
				return nil
			}
			cli.PrintSystemMessage(w, "Committed '%s' version %s (%s).", s.ID(), rec.Version, rec.Kind)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(addCmd, rmCmd, moveCmd, renameCmd, importCmd, exportCmd, checkpointCmd)

	addCmd.Flags().String("id", "", "Node ID (generated when empty)")
	addCmd.Flags().String("description", "", "Step description")
	addCmd.Flags().StringToString("set", nil, "Payload entries, key=value")
	addCmd.Flags().String("jump", "", "Node ID this step jumps to")
	rmCmd.Flags().Bool("subtree", false, "Also remove descendants")
	moveCmd.Flags().String("mode", "onto", "Drop mode: onto, before or after")
	exportCmd.Flags().StringP("out", "o", "", "Output file (stdout when empty)")
	exportCmd.Flags().String("format", "", "json or yaml (defaults from --out extension, else json)")
	checkpointCmd.Flags().String("kind", "draft", "draft, archive or publish")
	checkpointCmd.Flags().String("remark", "", "Note stored with the version")
}
