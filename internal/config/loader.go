package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from an optional YAML file, then overrides
// with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, OPENAI_API_KEY, etc.)
//  2. YAML config file (configPath, skipped when empty or absent)
//  3. Hardcoded defaults
//
// A .env file in the working directory is loaded first, without
// overriding variables already present in the environment.
//
// # Environment Variable Mapping
//
// Environment variables use underscore separator and are uppercased.
// The transformer splits on the first underscore into section and field:
//
//	SERVER_PORT           -> server.port
//	OPENAI_API_KEY        -> openai.api_key
//	VECTORSTORE_PROVIDER  -> vectorstore.provider
//	INGEST_CHUNK_SIZE     -> ingest.chunk_size
//
// QDRANT_API_KEY is read directly as the vector store credential, since
// it does not follow the section naming.
func Load(configPath string) (*Config, error) {
	// Pre-load .env so credentials behave the same whether they come
	// from the shell or a local dotfile. Existing env always wins.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	k := koanf.New(".")

	if configPath != "" {
		if err := loadConfigFile(k, configPath); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Qdrant Cloud credential, outside the SECTION_FIELD convention.
	if !cfg.VectorStore.APIKey.IsSet() {
		cfg.VectorStore.APIKey = Secret(os.Getenv("QDRANT_API_KEY"))
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile reads and parses a YAML config file into k.
func loadConfigFile(k *koanf.Koanf, configPath string) error {
	info, err := os.Stat(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return nil
}
