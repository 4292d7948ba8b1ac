package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig holds configuration for the embedded chromem store.
type ChromemConfig struct {
	// Path is the directory used for persistence. Empty means a purely
	// in-memory store, which is what the tests use.
	Path string

	// Compress enables gzip compression of persisted collections.
	Compress bool

	// VectorSize is the dimensionality of stored vectors.
	VectorSize int
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore is an embedded Store implementation backed by chromem-go.
//
// It needs no external service, which makes it the default for local
// development and the backend the pipeline tests run against. All
// vectors are precomputed by the caller, so the embedding function
// chromem normally applies is stubbed out.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig

	mu sync.Mutex
}

// NewChromemStore creates a new ChromemStore. With an empty Path the
// store lives in memory only; otherwise collections are persisted under
// the given directory.
func NewChromemStore(config ChromemConfig) (*ChromemStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	var db *chromem.DB
	var err error
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem db at %s: %v", ErrConnectionFailed, config.Path, err)
		}
	}

	return &ChromemStore{db: db, config: config}, nil
}

// Close releases the store. Chromem persists on write, so this is a no-op.
func (s *ChromemStore) Close() error {
	return nil
}

// noEmbed replaces chromem's default embedding function. Every document
// and query here arrives with a precomputed vector, so reaching this
// function means a caller forgot to supply one.
func noEmbed(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function not available: vectors must be precomputed")
}

// CreateCollection creates a new collection. Chromem does not pin a
// dimension at creation time, so the dimension is checked on every
// upsert and query instead.
func (s *ChromemStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.CreateCollection(name, nil, noEmbed)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// DeleteCollection deletes a collection and all its records.
// Deleting an absent collection is a no-op.
func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}

// CollectionExists checks whether a collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	_, ok := s.db.ListCollections()[name]
	return ok, nil
}

// Count returns the number of records in a collection.
func (s *ChromemStore) Count(ctx context.Context, name string) (int, error) {
	if err := ValidateCollectionName(name); err != nil {
		return 0, err
	}

	coll := s.db.GetCollection(name, noEmbed)
	if coll == nil {
		return 0, ErrCollectionNotFound
	}
	return coll.Count(), nil
}

// Upsert inserts or replaces records in a collection.
func (s *ChromemStore) Upsert(ctx context.Context, name string, records []Record) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := validateRecords(records, s.config.VectorSize); err != nil {
		return err
	}

	coll := s.db.GetCollection(name, noEmbed)
	if coll == nil {
		return ErrCollectionNotFound
	}

	docs := make([]chromem.Document, len(records))
	for i, record := range records {
		meta := make(map[string]string, len(record.Metadata))
		for k, v := range record.Metadata {
			meta[k] = metadataString(v)
		}

		content, _ := record.Metadata[MetadataTextKey].(string)

		docs[i] = chromem.Document{
			ID:        record.ID,
			Content:   content,
			Metadata:  meta,
			Embedding: record.Vector,
		}
	}

	// Concurrency 1 keeps insertion order deterministic; batches are
	// small enough that parallelism buys nothing here.
	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents to collection %s: %w", name, err)
	}
	return nil
}

// Query returns up to topK matches for vector, ordered by descending
// similarity. An empty collection yields an empty slice, not an error.
func (s *ChromemStore) Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if len(vector) != s.config.VectorSize {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection expects %d",
			ErrDimensionMismatch, len(vector), s.config.VectorSize)
	}

	coll := s.db.GetCollection(name, noEmbed)
	if coll == nil {
		return nil, ErrCollectionNotFound
	}

	count := coll.Count()
	if count == 0 {
		return []Match{}, nil
	}
	// Chromem rejects nResults greater than the collection size.
	if topK > count {
		topK = count
	}

	results, err := coll.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", name, err)
	}

	matches := make([]Match, len(results))
	for i, res := range results {
		meta := make(map[string]interface{}, len(res.Metadata))
		for k, v := range res.Metadata {
			meta[k] = v
		}

		matches[i] = Match{
			ID:       res.ID,
			Score:    res.Similarity,
			Text:     res.Content,
			Metadata: meta,
		}
	}
	return matches, nil
}

// metadataString converts a metadata value to chromem's string-only
// metadata representation.
func metadataString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
