package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/outline/internal/cli"
	"github.com/aretw0/outline/internal/config"
	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/session"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "outline",
	Short: "Outline is a versioned editor for hierarchical procedures",
	Long: `Outline keeps standard operating procedures as ordered trees of steps.
Steps get hierarchical codes (1, 1.1, 1.2), inherit their ancestors' data and
are committed as semantic versions: drafts, archives and published lineages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to outline.yaml")
	rootCmd.PersistentFlags().StringP("project", "p", "default", "Project ID")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

// withApp builds the configured engine, runs fn and closes everything,
// flushing unsaved edits when autosave is enabled.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := cli.NewApp(cfg, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		closeErr := errors.Join(app.Engine.Close(context.WithoutCancel(ctx)), app.Close())
		if err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, app)
}

// withSnapshot loads the stored --project snapshot without opening a session,
// so read-only commands never create a project.
func withSnapshot(cmd *cobra.Command, fn func(ctx context.Context, snap *domain.Snapshot) error) error {
	projectID, _ := cmd.Flags().GetString("project")
	return withApp(cmd, func(ctx context.Context, app *cli.App) error {
		snap, err := app.Engine.Inspect(ctx, projectID)
		if err != nil {
			return err
		}
		return fn(ctx, snap)
	})
}

// withSession opens the --project session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session) error) error {
	projectID, _ := cmd.Flags().GetString("project")
	return withApp(cmd, func(ctx context.Context, app *cli.App) error {
		s, err := app.Engine.Open(ctx, projectID)
		if err != nil {
			return err
		}
		return fn(ctx, s)
	})
}
