package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/outline"
	"github.com/aretw0/outline/internal/adapters/file"
	"github.com/aretw0/outline/internal/cli"
	"github.com/aretw0/outline/internal/presentation/tui"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render a project whenever its stored file changes",
	Long: `Watches the project's file in the file store and prints the outline again
after every save, whether it came from this machine's server, an editor or a sync tool.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Store.Backend != "file" {
			return fmt.Errorf("watch requires the file store backend, got %q", cfg.Store.Backend)
		}
		projectID, _ := cmd.Flags().GetString("project")
		format, _ := cmd.Flags().GetString("format")
		collapse, _ := cmd.Flags().GetStringSlice("collapse")
		collapsed := domain.NewCollapseSet(collapse...)

		// Watching never writes, so autosave stays off.
		cfg.Autosave.Interval = 0
		app, err := cli.NewApp(cfg, nil)
		if err != nil {
			return err
		}
		defer app.Close()
		defer app.Engine.Close(context.Background())

		w := cmd.OutOrStdout()
		tui.PrintBanner(w, strings.TrimSpace(outline.Version))

		render := func(ctx context.Context) error {
			snap, err := app.Engine.Inspect(ctx, projectID)
			if errors.Is(err, domain.ErrProjectNotFound) {
				cli.PrintSystemMessage(w, "Project '%s' does not exist yet. Waiting for changes...", projectID)
				return nil
			}
			if err != nil {
				return err
			}
			cli.PrintSystemMessage(w, "%s v%s", snap.Meta.Name, snap.Meta.LatestVersion)
			return renderSnapshot(w, snap, collapsed, format)
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		if err := render(sigCtx); err != nil {
			return err
		}
		path := file.New(cfg.Store.Dir).Path(projectID)
		return cli.WatchFile(sigCtx, path, cli.DefaultDebounce, app.Logger, render)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("format", "text", "Output format: text, markdown or json")
	watchCmd.Flags().StringSlice("collapse", nil, "Node IDs whose descendants are hidden")
}
