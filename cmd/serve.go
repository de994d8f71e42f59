package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/docrelay/markerd/internal/config"
	"github.com/docrelay/markerd/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the document conversion server",
		Long: `Starts the Marker conversion API on the specified port.

Uploads are converted in background batches; clients poll the session
status endpoint and download artifacts once processing completes. Old
session directories are evicted on startup and after each batch.`,
		Example: `  # Start server on the default port 8100
  markerd serve

  # Start server on a custom port
  markerd serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			handler := handlers.New(cfg)

			if cfg.Retention.SweepOnStartup {
				slog.Info("Performing startup cleanup")
				handler.SweepNow()
			}

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/upload", handler.HandleUpload)
			mux.HandleFunc("/api/sessions", handler.HandleSessions)
			mux.HandleFunc("/api/sessions/", handler.HandleSessionDetail)
			mux.HandleFunc("/api/formats", handler.HandleFormats)
			mux.HandleFunc("/api/cleanup", handler.HandleCleanup)
			mux.HandleFunc("/convert", handler.HandleConvert)
			mux.HandleFunc("/health", handler.HandleHealth)
			mux.HandleFunc("/", handler.HandleRoot)

			addr := ":" + cfg.Server.Port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Marker conversion server available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")

	return cmd
}
