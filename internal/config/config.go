// Package config provides configuration loading for docrag.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables. Credentials only ever come from the environment (optionally
// via a .env file) and are held in Secret fields so they never leak into
// logs or serialized output.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete docrag configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	OpenAI      OpenAIConfig      `koanf:"openai"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Query       QueryConfig       `koanf:"query"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// OpenAIConfig holds the OpenAI API configuration shared by the
// embeddings client and the answer generator.
type OpenAIConfig struct {
	APIKey         Secret `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	EmbeddingModel string `koanf:"embedding_model"`
	ChatModel      string `koanf:"chat_model"`
	Dimension      int    `koanf:"dimension"`
}

// VectorStoreConfig holds vector store configuration. Qdrant and chromem
// settings are flattened into one section so environment overrides stay a
// simple SECTION_FIELD mapping (VECTORSTORE_PROVIDER, VECTORSTORE_HOST).
type VectorStoreConfig struct {
	Provider   string `koanf:"provider"`
	Collection string `koanf:"collection"`

	// Qdrant settings.
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`

	// Chromem settings.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	ChunkSize    int  `koanf:"chunk_size"`
	ChunkOverlap int  `koanf:"chunk_overlap"`
	BatchSize    int  `koanf:"batch_size"`
	Concurrency  int  `koanf:"concurrency"`
	Staged       bool `koanf:"staged"`
}

// QueryConfig holds query pipeline configuration.
type QueryConfig struct {
	TopK int `koanf:"top_k"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	// OpenAI defaults
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4"
	}
	if cfg.OpenAI.Dimension == 0 {
		cfg.OpenAI.Dimension = 1536
	}

	// VectorStore defaults
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "qdrant"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "hubspot_docs"
	}
	if cfg.VectorStore.Host == "" {
		cfg.VectorStore.Host = "localhost"
	}
	if cfg.VectorStore.Port == 0 {
		cfg.VectorStore.Port = 6334
	}

	// Ingest defaults
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 500
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 16
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}

	// Query defaults
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
//
// A missing OPENAI_API_KEY is fatal here: every pipeline operation needs
// it, and failing at startup beats failing on the first request.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if !c.OpenAI.APIKey.IsSet() {
		return errors.New("OPENAI_API_KEY is required (set it in the environment or a .env file)")
	}
	if c.OpenAI.Dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", c.OpenAI.Dimension)
	}

	switch c.VectorStore.Provider {
	case "qdrant":
		if c.VectorStore.UseTLS && !c.VectorStore.APIKey.IsSet() {
			return errors.New("QDRANT_API_KEY is required when TLS is enabled (managed Qdrant)")
		}
	case "chromem":
	default:
		return fmt.Errorf("unknown vector store provider: %q (expected qdrant or chromem)", c.VectorStore.Provider)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk_size): got overlap %d, size %d",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive: %d", c.Ingest.BatchSize)
	}
	if c.Ingest.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive: %d", c.Ingest.Concurrency)
	}

	if c.Query.TopK <= 0 {
		return fmt.Errorf("top_k must be positive: %d", c.Query.TopK)
	}

	return nil
}
