package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.OpenAI.APIKey = "sk-test"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())

	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, "gpt-4", cfg.OpenAI.ChatModel)
	assert.Equal(t, 1536, cfg.OpenAI.Dimension)

	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "hubspot_docs", cfg.VectorStore.Collection)
	assert.Equal(t, 6334, cfg.VectorStore.Port)

	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 50, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 5, cfg.Query.TopK)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.OpenAI.APIKey = "" },
			wantErr: "OPENAI_API_KEY",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "invalid dimension",
			mutate:  func(c *Config) { c.OpenAI.Dimension = -1 },
			wantErr: "dimension",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.VectorStore.Provider = "pinecone" },
			wantErr: "unknown vector store provider",
		},
		{
			name: "tls without qdrant key",
			mutate: func(c *Config) {
				c.VectorStore.UseTLS = true
				c.VectorStore.APIKey = ""
			},
			wantErr: "QDRANT_API_KEY",
		},
		{
			name:    "overlap equals chunk size",
			mutate:  func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize },
			wantErr: "chunk overlap",
		},
		{
			name:    "negative overlap",
			mutate:  func(c *Config) { c.Ingest.ChunkOverlap = -1 },
			wantErr: "chunk overlap",
		},
		{
			name:    "non-positive top_k",
			mutate:  func(c *Config) { c.Query.TopK = -5 },
			wantErr: "top_k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey.Value())
	assert.Equal(t, "hubspot_docs", cfg.VectorStore.Collection)
}

func TestLoad_MissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9001
vectorstore:
  provider: chromem
  collection: custom_docs
ingest:
  chunk_size: 200
  chunk_overlap: 20
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, "custom_docs", cfg.VectorStore.Collection)
	assert.Equal(t, 200, cfg.Ingest.ChunkSize)
	assert.Equal(t, 20, cfg.Ingest.ChunkOverlap)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SERVER_PORT", "9002")
	t.Setenv("VECTORSTORE_PROVIDER", "chromem")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9002, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
}

func TestLoad_QdrantAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_API_KEY", "qd-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "qd-secret", cfg.VectorStore.APIKey.Value())
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-super-secret")
	assert.Contains(t, string(data), "[REDACTED]")

	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "", Secret("").String())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}
