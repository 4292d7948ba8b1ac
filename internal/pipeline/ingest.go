// Package pipeline wires chunking, embedding, vector storage and answer
// generation into the two top-level operations: ingesting a document and
// answering a question against it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Sentinel errors for pipeline operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoMatches is returned when a query finds no indexed chunks.
	// This is a valid terminal outcome, not a transport failure.
	ErrNoMatches = errors.New("no relevant documentation found")

	// ErrIngestIncomplete indicates the staging collection held fewer
	// points than expected, so the live collection was left untouched.
	ErrIngestIncomplete = errors.New("staged ingestion verification failed")
)

// Embedder converts text into embedding vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from retrieved context and a question.
type Generator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
}

const (
	defaultDimension   = 1536
	defaultBatchSize   = 16
	defaultConcurrency = 4

	// stagingSuffix names the scratch collection used by staged ingestion.
	stagingSuffix = "_staging"
)

// IngestorConfig holds configuration for the ingestion pipeline.
type IngestorConfig struct {
	// Collection is the vector store collection to populate.
	Collection string

	// Dimension is the embedding dimensionality. Default: 1536
	Dimension int

	// BatchSize is the number of chunks embedded and upserted per batch.
	// Default: 16
	BatchSize int

	// Concurrency bounds the number of embedding batches in flight.
	// Default: 4
	Concurrency int

	// Staged enables staged ingestion: the index is built in a staging
	// collection, verified, and only then swapped in. The default mode
	// rebuilds the live collection in place.
	Staged bool

	// Force rebuilds the collection even when the document yields no
	// chunks, leaving an empty index instead of the previous contents.
	Force bool
}

// ApplyDefaults sets default values for unset fields.
func (c *IngestorConfig) ApplyDefaults() {
	if c.Dimension == 0 {
		c.Dimension = defaultDimension
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
}

// Validate validates the configuration.
func (c IngestorConfig) Validate() error {
	if err := vectorstore.ValidateCollectionName(c.Collection); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	}
	return nil
}

// IngestResult summarizes a completed ingestion run.
type IngestResult struct {
	// Collection is the live collection that was populated.
	Collection string

	// Chunks is the number of chunks indexed.
	Chunks int
}

// Ingestor rebuilds a vector store collection from a document.
type Ingestor struct {
	config   IngestorConfig
	splitter *chunker.Splitter
	embedder Embedder
	store    vectorstore.Store
	logger   *zap.Logger
}

// NewIngestor creates a new Ingestor.
func NewIngestor(config IngestorConfig, splitter *chunker.Splitter, embedder Embedder, store vectorstore.Store, logger *zap.Logger) (*Ingestor, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if splitter == nil {
		return nil, fmt.Errorf("%w: splitter required", ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder required", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ingestor{
		config:   config,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   logger.Named("ingest"),
	}, nil
}

// Run chunks the document, embeds every chunk and rebuilds the
// collection. An empty document yields a zero-chunk result and leaves
// the store untouched.
func (ing *Ingestor) Run(ctx context.Context, documentText string) (*IngestResult, error) {
	chunks := ing.splitter.Split(documentText)
	if len(chunks) == 0 {
		if ing.config.Force {
			ing.logger.Warn("document produced no chunks, clearing collection",
				zap.String("collection", ing.config.Collection))
			if err := ing.rebuild(ctx, ing.config.Collection, nil); err != nil {
				return nil, err
			}
		} else {
			ing.logger.Warn("document produced no chunks, leaving existing collection in place",
				zap.String("collection", ing.config.Collection))
		}
		return &IngestResult{Collection: ing.config.Collection, Chunks: 0}, nil
	}

	ing.logger.Info("starting ingestion",
		zap.String("collection", ing.config.Collection),
		zap.Int("chunks", len(chunks)),
		zap.Bool("staged", ing.config.Staged),
	)

	records, err := ing.embedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}

	if ing.config.Staged {
		if err := ing.stagedRebuild(ctx, records); err != nil {
			return nil, err
		}
	} else {
		if err := ing.rebuild(ctx, ing.config.Collection, records); err != nil {
			return nil, err
		}
	}

	ing.logger.Info("ingestion complete",
		zap.String("collection", ing.config.Collection),
		zap.Int("chunks", len(records)),
	)

	return &IngestResult{Collection: ing.config.Collection, Chunks: len(records)}, nil
}

// embedChunks embeds all chunks in batches with bounded concurrency.
// Results land at their batch's position, so record order always matches
// chunk order regardless of completion order.
func (ing *Ingestor) embedChunks(ctx context.Context, chunks []chunker.Chunk) ([]vectorstore.Record, error) {
	batches := batchChunks(chunks, ing.config.BatchSize)
	vectors := make([][][]float32, len(batches))

	pool, err := ants.NewPool(ing.config.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i, batch := range batches {
		i, batch := i, batch

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			texts := make([]string, len(batch))
			for j, chunk := range batch {
				texts[j] = chunk.Text
			}

			ing.logger.Debug("embedding batch",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("chunks", len(batch)),
			)

			embedded, err := ing.embedder.EmbedDocuments(ctx, texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
				}
				mu.Unlock()
				return
			}

			vectors[i] = embedded
		})
		if err != nil {
			wg.Done()
			return nil, fmt.Errorf("submitting batch %d: %w", i+1, err)
		}
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]vectorstore.Record, 0, len(chunks))
	for i, batch := range batches {
		if len(vectors[i]) != len(batch) {
			return nil, fmt.Errorf("batch %d returned %d vectors for %d chunks", i+1, len(vectors[i]), len(batch))
		}
		for j, chunk := range batch {
			records = append(records, vectorstore.Record{
				ID:     chunk.ID(),
				Vector: vectors[i][j],
				Metadata: map[string]interface{}{
					vectorstore.MetadataTextKey: chunk.Text,
					"index":                     chunk.Index,
				},
			})
		}
	}
	return records, nil
}

// rebuild drops and recreates the collection, then upserts all records
// in batches.
func (ing *Ingestor) rebuild(ctx context.Context, collection string, records []vectorstore.Record) error {
	if err := ing.store.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", collection, err)
	}
	if err := ing.store.CreateCollection(ctx, collection, ing.config.Dimension); err != nil {
		return fmt.Errorf("creating collection %s: %w", collection, err)
	}
	return ing.upsertAll(ctx, collection, records)
}

// stagedRebuild builds the index in a staging collection first, verifies
// the point count, and only then replaces the live collection. A failure
// before verification leaves the live collection untouched.
func (ing *Ingestor) stagedRebuild(ctx context.Context, records []vectorstore.Record) error {
	staging := ing.config.Collection + stagingSuffix

	if err := ing.rebuild(ctx, staging, records); err != nil {
		return fmt.Errorf("building staging collection: %w", err)
	}

	count, err := ing.store.Count(ctx, staging)
	if err != nil {
		return fmt.Errorf("verifying staging collection: %w", err)
	}
	if count != len(records) {
		return fmt.Errorf("%w: staging has %d points, expected %d", ErrIngestIncomplete, count, len(records))
	}

	ing.logger.Info("staging collection verified, swapping in",
		zap.String("staging", staging),
		zap.Int("points", count),
	)

	if err := ing.rebuild(ctx, ing.config.Collection, records); err != nil {
		return fmt.Errorf("swapping in verified index: %w", err)
	}

	if err := ing.store.DeleteCollection(ctx, staging); err != nil {
		ing.logger.Warn("failed to drop staging collection", zap.String("staging", staging), zap.Error(err))
	}
	return nil
}

// upsertAll upserts records in batches of BatchSize.
func (ing *Ingestor) upsertAll(ctx context.Context, collection string, records []vectorstore.Record) error {
	for start := 0; start < len(records); start += ing.config.BatchSize {
		end := start + ing.config.BatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ing.store.Upsert(ctx, collection, records[start:end]); err != nil {
			return fmt.Errorf("upserting records %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// batchChunks splits chunks into consecutive batches of at most size.
func batchChunks(chunks []chunker.Chunk, size int) [][]chunker.Chunk {
	var batches [][]chunker.Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[start:end])
	}
	return batches
}
