package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arcdiff/internal/api"
	internaldb "arcdiff/internal/db"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs until interrupted",
		Long: "Migrates the store, starts the orphan sweep and serves the /v1/diff API on " +
			"LISTEN_ADDR until SIGINT or SIGTERM. An empty address runs the sweep only.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck
			if cmd.Flags().Changed("listen") {
				rt.cfg.ListenAddr = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if err := rt.app.StartBackground(); err != nil {
				return err
			}
			defer rt.app.StopBackground()

			rt.logger.Info("diffd started",
				"db", rt.cfg.MetaDBPath,
				"device", rt.cfg.DeviceName,
				"queue", rt.cfg.QueueName,
				"reconcile_schedule", rt.cfg.ReconcileSchedule,
				"listen_addr", rt.cfg.ListenAddr,
			)

			if rt.cfg.ListenAddr == "" {
				<-ctx.Done()
				rt.logger.Info("shutting down")
				return nil
			}

			srv := &http.Server{
				Addr:              rt.cfg.ListenAddr,
				Handler:           api.NewRouter(api.NewHandler(rt.app.Services.Diff, rt.logger)),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			// Graceful shutdown
			go func() {
				<-ctx.Done()
				rt.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP API address (overrides LISTEN_ADDR; empty disables the API)")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			v, err := internaldb.SchemaVersion(rt.pools.Write)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, map[string]int64{"schema_version": v})
			}
			_, _ = fmt.Fprintf(os.Stdout, "schema version %d\n", v)
			return nil
		},
	}
}

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove queue messages left without a diff task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			removed, err := rt.app.Reconciler.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printCount(cmd, "removed", int64(removed))
		},
	}
}

func printCount(cmd *cobra.Command, label string, n int64) error {
	if getOutputFormat(cmd) == "json" {
		return printJSON(os.Stdout, map[string]int64{label: n})
	}
	_, _ = fmt.Fprintf(os.Stdout, "%s: %d\n", label, n)
	return nil
}
