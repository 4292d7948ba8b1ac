package vectorstore

import (
	"fmt"
	"time"
)

// Provider names accepted by New.
const (
	ProviderQdrant  = "qdrant"
	ProviderChromem = "chromem"
)

// Config selects and configures a Store backend.
type Config struct {
	// Provider selects the backend: "qdrant" or "chromem".
	// Default: "qdrant"
	Provider string

	// VectorSize is the dimensionality of stored vectors.
	VectorSize int

	// Qdrant settings, used when Provider is "qdrant".
	Host         string
	Port         int
	APIKey       string
	UseTLS       bool
	MaxRetries   int
	RetryBackoff time.Duration

	// Path is the chromem persistence directory, used when Provider is
	// "chromem". Empty means in-memory.
	Path string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderQdrant
	}
}

// New creates a Store for the configured provider.
func New(config Config) (Store, error) {
	config.ApplyDefaults()

	switch config.Provider {
	case ProviderQdrant:
		return NewQdrantStore(QdrantConfig{
			Host:         config.Host,
			Port:         config.Port,
			APIKey:       config.APIKey,
			UseTLS:       config.UseTLS,
			VectorSize:   config.VectorSize,
			MaxRetries:   config.MaxRetries,
			RetryBackoff: config.RetryBackoff,
		})
	case ProviderChromem:
		return NewChromemStore(ChromemConfig{
			Path:       config.Path,
			VectorSize: config.VectorSize,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}
}
