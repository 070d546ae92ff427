package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/outline/internal/cli"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the committed versions of a project, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		asJSON, _ := cmd.Flags().GetBool("json")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			recs, err := app.Engine.History(ctx, projectID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			if len(recs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No versions recorded for '%s'.\n", projectID)
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tKIND\tCREATED\tEDITOR\tCHANGES\tREMARK")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.Version, r.Kind, r.CreatedAt.Format(time.DateTime), r.Editor.Email, len(r.ChangeLog), r.Remark)
			}
			return tw.Flush()
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <old-version> <new-version>",
	Short: "Describe the changes between two recorded versions",
	Long:  `Use "current" as the new version to diff against the stored working copy.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			recs, err := app.Engine.History(ctx, projectID)
			if err != nil {
				return err
			}
			find := func(v string) (*domain.Snapshot, error) {
				if v == "current" {
					return app.Engine.Inspect(ctx, projectID)
				}
				want := domain.ParseVersion(v)
				for _, r := range recs {
					if domain.ParseVersion(r.Version).Compare(want) == 0 {
						return r.Snapshot, nil
					}
				}
				return nil, fmt.Errorf("version %s of %q: %w", v, projectID, domain.ErrProjectNotFound)
			}
			oldSnap, err := find(args[0])
			if err != nil {
				return err
			}
			newSnap, err := find(args[1])
			if err != nil {
				return err
			}
			changes := domain.ChangeLog(oldSnap, newSnap)
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
				return nil
			}
			for _, line := range changes {
				fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", line)
			}
			return nil
		})
	},
}

var bumpCmd = &cobra.Command{
	Use:   "bump <version>",
	Short: "Print the next version for a checkpoint kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawKind, _ := cmd.Flags().GetString("kind")
		kind, err := domain.ParseCheckpointKind(rawKind)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), kind.Bump(domain.ParseVersion(args[0])))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd, diffCmd, bumpCmd)

	historyCmd.Flags().Bool("json", false, "Print records as JSON")
	bumpCmd.Flags().String("kind", "patch", "patch, minor or major (or draft, archive, publish)")
}
