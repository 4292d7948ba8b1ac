package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// ErrEmptyQuestion is returned when the question is empty or whitespace.
var ErrEmptyQuestion = errors.New("question cannot be empty")

const defaultTopK = 5

// AnswererConfig holds configuration for the query pipeline.
type AnswererConfig struct {
	// Collection is the vector store collection to query.
	Collection string

	// TopK is the number of chunks retrieved per question. Default: 5
	TopK int
}

// ApplyDefaults sets default values for unset fields.
func (c *AnswererConfig) ApplyDefaults() {
	if c.TopK == 0 {
		c.TopK = defaultTopK
	}
}

// Validate validates the configuration.
func (c AnswererConfig) Validate() error {
	if err := vectorstore.ValidateCollectionName(c.Collection); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	return nil
}

// Source is a retrieved chunk backing an answer.
type Source struct {
	// ID is the chunk identifier.
	ID string `json:"id"`

	// Text is the chunk text.
	Text string `json:"text"`

	// Score is the similarity score against the question.
	Score float32 `json:"score"`
}

// Answer is the result of asking a question.
type Answer struct {
	// Question is the original question.
	Question string `json:"question"`

	// Answer is the generated answer text.
	Answer string `json:"answer"`

	// Sources lists the retrieved chunks in descending similarity order.
	Sources []Source `json:"sources"`
}

// Answerer answers questions against an indexed collection.
type Answerer struct {
	config    AnswererConfig
	embedder  Embedder
	store     vectorstore.Store
	generator Generator
	logger    *zap.Logger
}

// NewAnswerer creates a new Answerer.
func NewAnswerer(config AnswererConfig, embedder Embedder, store vectorstore.Store, generator Generator, logger *zap.Logger) (*Answerer, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store required", ErrInvalidConfig)
	}
	if generator == nil {
		return nil, fmt.Errorf("%w: generator required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Answerer{
		config:    config,
		embedder:  embedder,
		store:     store,
		generator: generator,
		logger:    logger.Named("query"),
	}, nil
}

// Retrieve embeds the question and returns the top-k matching chunks.
// Zero matches yields ErrNoMatches.
func (a *Answerer) Retrieve(ctx context.Context, question string) ([]Source, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	vector, err := a.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := a.store.Query(ctx, a.config.Collection, vector, a.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", a.config.Collection, err)
	}
	if len(matches) == 0 {
		return nil, ErrNoMatches
	}

	sources := make([]Source, len(matches))
	for i, match := range matches {
		sources[i] = Source{
			ID:    match.ID,
			Text:  match.Text,
			Score: match.Score,
		}
	}

	a.logger.Debug("retrieved chunks",
		zap.String("collection", a.config.Collection),
		zap.Int("matches", len(sources)),
	)
	return sources, nil
}

// Compose joins retrieved chunk texts into the context block handed to
// the generator.
func Compose(sources []Source) string {
	texts := make([]string, len(sources))
	for i, source := range sources {
		texts[i] = source.Text
	}
	return strings.Join(texts, "\n\n")
}

// Ask answers a question: retrieve top-k chunks, compose context,
// generate. When nothing is retrieved, ErrNoMatches is returned and the
// generator is never invoked.
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	sources, err := a.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	answer, err := a.generator.Generate(ctx, Compose(sources), strings.TrimSpace(question))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{
		Question: strings.TrimSpace(question),
		Answer:   answer,
		Sources:  sources,
	}, nil
}
