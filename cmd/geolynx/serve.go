package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"geolynx/internal/api/handlers"
	"geolynx/internal/api/router"
	"geolynx/internal/banner"
)

func newServeCmd(load configLoader) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve IP metadata over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if !quiet {
				banner.Print()
				banner.PrintDatabases(a.databaseRows())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.startBackground(ctx)

			gin.SetMode(gin.ReleaseMode)
			engine := router.New(router.Config{
				MetricsEnabled:    cfg.MetricsEnabled,
				TrustForwardedFor: cfg.Server.TrustForwardedFor,
			}, router.Services{
				Metadata:  a.service,
				Cache:     a.service,
				Databases: a.source,
				System:    handlers.NewSystemHandler(a.service, a.source, a.cleanup, logger),
			}, logger)

			srv := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           engine,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server listening", logger.Args("addr", cfg.Addr()))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.WithCaller().Error("HTTP server failed", logger.Args("error", err))
					return err
				}
			case <-ctx.Done():
			}

			logger.Info("Shutting down HTTP server", logger.Args("timeout", cfg.Server.ShutdownTimeout.String()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WithCaller().Error("Graceful shutdown failed", logger.Args("error", err))
				return err
			}
			logger.Info("HTTP server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the startup banner")
	return cmd
}
