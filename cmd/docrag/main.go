// Package main implements the docrag CLI: ingest documentation, ask
// questions against it, and serve the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/generation"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

var (
	// configPath is the YAML config file, set by the --config flag
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Documentation assistant backed by retrieval-augmented generation",
	Long: `docrag indexes documentation into a vector store and answers
questions against it using OpenAI embeddings and chat completion.

Credentials come from the environment (or a .env file in the working
directory): OPENAI_API_KEY always, QDRANT_API_KEY for managed Qdrant.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(envCmd)
}

// app bundles the wired components behind every subcommand.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     vectorstore.Store
	embedder  *embeddings.Client
	generator *generation.Generator
}

// loadApp loads config and wires the pipeline components.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Provider:   cfg.VectorStore.Provider,
		VectorSize: cfg.OpenAI.Dimension,
		Host:       cfg.VectorStore.Host,
		Port:       cfg.VectorStore.Port,
		APIKey:     cfg.VectorStore.APIKey.Value(),
		UseTLS:     cfg.VectorStore.UseTLS,
		Path:       cfg.VectorStore.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}

	embedder, err := embeddings.NewClient(embeddings.Config{
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.EmbeddingModel,
		APIKey:    cfg.OpenAI.APIKey.Value(),
		Dimension: cfg.OpenAI.Dimension,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("building embeddings client: %w", err)
	}

	generator, err := generation.NewGenerator(generation.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.ChatModel,
		APIKey:  cfg.OpenAI.APIKey.Value(),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("building generator: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		embedder:  embedder,
		generator: generator,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing vector store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
