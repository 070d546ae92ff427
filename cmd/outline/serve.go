package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/outline"
	"github.com/aretw0/outline/internal/cli"
	"github.com/aretw0/outline/internal/presentation/tui"
	httpAdapter "github.com/aretw0/outline/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the outline editor API over HTTP: outline views, edits, checkpoints,
history, import/export, an SSE change stream and Prometheus metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		app, err := cli.NewApp(cfg, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		tui.PrintBanner(cmd.ErrOrStderr(), strings.TrimSpace(outline.Version))

		handler := httpAdapter.NewHandler(app.Engine,
			httpAdapter.WithVersion(strings.TrimSpace(outline.Version)),
			httpAdapter.WithCORSOrigins(cfg.HTTP.CORSOrigins...),
			httpAdapter.WithMetrics(app.MetricsHandler()),
			httpAdapter.WithLogger(app.Logger),
		)
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("Starting Outline Server", "addr", srv.Addr, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			app.Engine.Close(context.Background())
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			app.Logger.Info("Start shutdown", "signal", sigCtx.Signal())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Error("Graceful shutdown did not complete", "err", err)
				srv.Close()
			}
			// Flush unsaved edits after the last request finished.
			if err := app.Engine.Close(ctx); err != nil {
				return err
			}
			app.Logger.Info("Outline Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}
