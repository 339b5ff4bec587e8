package main

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

	"github.com/aretw0/verbgate"
	"github.com/aretw0/verbgate/internal/cli"
	httpAdapter "github.com/aretw0/verbgate/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts verbgate as a JSON API over HTTP, with Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var extra []verbgate.Option
		if audit, _ := cmd.Flags().GetBool("audit"); audit {
			extra = append(extra, verbgate.WithAuditWriter(os.Stdout))
		}
		app, err := cli.Open(options(cmd), extra...)
		if err != nil {
			return err
		}
		defer app.Close()
		logger := app.Logger

		handler, err := httpAdapter.NewHandler(app,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(app.MetricsHandler()),
			httpAdapter.WithVersion(verbgate.Version),
		)
		if err != nil {
			return err
		}

		addr := app.Config.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting verbgate server", "address", addr, "mode", app.Policy().Mode())
			serverErrors <- srv.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
	serveCmd.Flags().Bool("audit", false, "Write every trace record as a JSON line to stdout")
}
