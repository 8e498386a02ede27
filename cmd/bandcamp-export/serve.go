package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/handiism/bandcamp-purchases/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP API",
		Long: `Starts a local HTTP API for browser front ends. Scrapes started through
POST /api/bandcamp/scrape run in the background; poll
GET /api/bandcamp/progress and fetch GET /api/bandcamp/export when done.`,
		Example: `  # Start server on default address 127.0.0.1:8787
  bandcamp-export serve

  # Start server on custom address
  bandcamp-export serve --addr :3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.logger

			session, err := a.openSession(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			if _, err := session.LoadCached(ctx); err != nil {
				logger.Warn("Could not load cached purchases", "error", err)
			}

			api := server.NewServer(session, session.Client(), logger.With("component", "server"))
			defer api.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info("API available", "addr", addr, "url", "http://"+addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Server shutdown failed", "error", err)
					return err
				}
				logger.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:8787", "Address to listen on")

	return cmd
}
