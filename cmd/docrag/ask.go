package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/pipeline"
)

var (
	// ask command flags
	askTopK       int
	askSkipAnswer bool
)

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "Number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askSkipAnswer, "retrieve-only", false, "Show retrieved chunks without generating an answer")
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the indexed documentation",
	Long: `Ask a question against the indexed documentation.

With a question argument, retrieves the most relevant chunks and prints
a generated answer. Without one, starts an interactive loop that shows
the retrieved chunks for each question and asks before spending tokens
on answer generation.

Examples:
  docrag ask "How do workflows enroll contacts?"
  docrag ask --retrieve-only "deal stages"
  docrag ask`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topK := a.cfg.Query.TopK
	if askTopK > 0 {
		topK = askTopK
	}

	answerer, err := pipeline.NewAnswerer(
		pipeline.AnswererConfig{
			Collection: a.cfg.VectorStore.Collection,
			TopK:       topK,
		},
		a.embedder, a.store, a.generator, a.logger,
	)
	if err != nil {
		return fmt.Errorf("building query pipeline: %w", err)
	}

	if len(args) == 1 {
		return askOnce(cmd, answerer, args[0])
	}
	return askLoop(cmd, answerer)
}

// askOnce answers a single question and exits.
func askOnce(cmd *cobra.Command, answerer *pipeline.Answerer, question string) error {
	if askSkipAnswer {
		sources, err := answerer.Retrieve(cmd.Context(), question)
		if err != nil {
			return err
		}
		printSources(sources)
		return nil
	}

	answer, err := answerer.Ask(cmd.Context(), question)
	if err != nil {
		return err
	}

	fmt.Println(answer.Answer)
	fmt.Println()
	printSources(answer.Sources)
	return nil
}

// askLoop runs the interactive prompt: retrieve, show chunks, confirm
// before generating.
func askLoop(cmd *cobra.Command, answerer *pipeline.Answerer) error {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Interactive mode. Empty question exits.")
	for {
		fmt.Print("\nQ: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			return nil
		}

		sources, err := answerer.Retrieve(cmd.Context(), question)
		if errors.Is(err, pipeline.ErrNoMatches) {
			fmt.Println("No relevant documentation found.")
			continue
		}
		if err != nil {
			return err
		}

		printSources(sources)

		fmt.Print("\nGenerate an answer? [y/N] ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if !strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
			continue
		}

		answer, err := answerer.Ask(cmd.Context(), question)
		if err != nil {
			return err
		}
		fmt.Println("\n" + answer.Answer)
	}
}

// printSources prints retrieved chunks with scores, most similar first.
func printSources(sources []pipeline.Source) {
	for _, s := range sources {
		fmt.Printf("[%s score=%.3f] %s\n", s.ID, s.Score, truncate(s.Text, 160))
	}
}

// truncate shortens text to at most n runes for terminal display.
func truncate(text string, n int) string {
	runes := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
