package main

import (
	"context"
	"fmt"

	"github.com/aretw0/outline/internal/cli"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage stored projects",
	Long:  `List, inspect, and remove projects in the configured store.`,
}

var projectLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			ids, err := app.Engine.Projects(ctx)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(w, "No projects found.")
				return nil
			}
			for _, id := range ids {
				snap, err := app.Engine.Inspect(ctx, id)
				if err != nil {
					fmt.Fprintf(w, "- %s (unreadable: %v)\n", id, err)
					continue
				}
				fmt.Fprintf(w, "- %s  %s  v%s  %s\n", id, snap.Meta.Name, snap.Meta.LatestVersion, snap.Status)
			}
			return nil
		})
	},
}

var projectInspectCmd = &cobra.Command{
	Use:   "inspect <project-id>",
	Short: "Print the stored snapshot of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			snap, err := app.Engine.Inspect(ctx, args[0])
			if err != nil {
				return fmt.Errorf("error loading project '%s': %w", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		})
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <project-id>...",
	Short: "Remove one or more projects; their history is kept",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			var failed int
			for _, id := range args {
				if err := app.Engine.Delete(ctx, id); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed project '%s'\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d projects not removed", failed, len(args))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectLsCmd, projectInspectCmd, projectRmCmd)
}
