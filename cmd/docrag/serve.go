package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/pipeline"
	"github.com/fyrsmithlabs/docrag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

Endpoints:
  POST /ask      answer a question against the indexed documentation
  GET  /         welcome message
  GET  /chat     browser chat page
  GET  /healthz  health check
  GET  /metrics  Prometheus metrics

Examples:
  docrag serve
  SERVER_PORT=9000 docrag serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	answerer, err := pipeline.NewAnswerer(
		pipeline.AnswererConfig{
			Collection: a.cfg.VectorStore.Collection,
			TopK:       a.cfg.Query.TopK,
		},
		a.embedder, a.store, a.generator, a.logger,
	)
	if err != nil {
		return fmt.Errorf("building query pipeline: %w", err)
	}

	srv, err := server.NewServer(answerer, a.logger, &server.Config{
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
