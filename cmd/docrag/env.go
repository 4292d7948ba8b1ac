package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/logging"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Check which credentials are configured",
	Long: `Check which credentials are configured, without printing them.

Reads the environment (and a .env file in the working directory, if
present) and reports each expected credential with a masked preview.

Example:
  docrag env`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func runEnv(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	keys := []struct {
		name     string
		required string
	}{
		{name: "OPENAI_API_KEY", required: "required"},
		{name: "QDRANT_API_KEY", required: "required for managed Qdrant (TLS)"},
	}

	missing := false
	for _, key := range keys {
		val := os.Getenv(key.name)
		if val == "" {
			fmt.Printf("%-16s NOT SET (%s)\n", key.name, key.required)
			if key.required == "required" {
				missing = true
			}
			continue
		}
		fmt.Printf("%-16s set (%s)\n", key.name, logging.MaskKey(val))
	}

	if missing {
		return fmt.Errorf("required credentials missing")
	}
	return nil
}
