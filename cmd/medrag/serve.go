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
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/medrag/internal/transport/chi"
	"github.com/kailas-cloud/medrag/internal/version"
)

func newServeCmd(env *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(*env)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cmd.Flags().Changed("port") {
				cfg.HTTP.Port = port
			}

			logger.Info("Starting medrag API server",
				zap.String("version", version.Version),
				zap.String("commit", version.Commit),
				zap.String("env", *env),
				zap.Int("http_port", cfg.HTTP.Port),
			)

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			return serve(a)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override http.port")
	return cmd
}

func serve(a *app) error {
	cfg, logger := a.cfg, a.logger

	server := chiTransport.NewServer(a.queries, a.chunks, a.health,
		time.Duration(cfg.HTTP.QueryTimeoutMs)*time.Millisecond, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case serveErr = <-errChan:
		logger.Error("HTTP server error", zap.Error(serveErr))
	case sig := <-quit:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	a.Close(shutdownCtx)

	logger.Info("Server stopped gracefully")
	return serveErr
}
