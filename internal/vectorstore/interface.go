// Package vectorstore defines the interface for vector index operations.
//
// Stores hold (id, vector, metadata) records in named collections and
// answer top-k nearest-neighbor queries. Embedding happens elsewhere:
// records arrive with their vectors already computed, and every store
// validates vector length against the configured collection dimension
// before touching the wire.
//
// Implementations:
//   - QdrantStore: external Qdrant over native gRPC
//   - ChromemStore: embedded chromem-go (no external service)
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrConnectionFailed indicates the store is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmptyRecords indicates empty or nil records.
	ErrEmptyRecords = errors.New("empty or nil records")

	// ErrDimensionMismatch indicates a record vector whose length differs
	// from the collection dimension. Raised before any upsert is sent.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidTopK indicates a non-positive top-k query parameter.
	ErrInvalidTopK = errors.New("top_k must be positive")
)

// MetadataTextKey is the metadata field carrying the original chunk text.
const MetadataTextKey = "text"

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special characters, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Record is an (id, vector, metadata) triple stored in a collection.
type Record struct {
	// ID is the unique record identifier. Upserting the same ID replaces
	// the prior record.
	ID string

	// Vector is the precomputed embedding. Its length must equal the
	// collection dimension.
	Vector []float32

	// Metadata contains additional key-value pairs. The original chunk
	// text lives under MetadataTextKey.
	Metadata map[string]interface{}
}

// Match is a query result: a stored record plus its similarity score.
type Match struct {
	// ID is the record identifier.
	ID string

	// Score is the similarity score (higher = more similar).
	Score float32

	// Text is the stored chunk text, extracted from metadata.
	Text string

	// Metadata contains the full record metadata.
	Metadata map[string]interface{}
}

// Store is the interface for vector index operations.
//
// Queries against an empty collection return an empty slice, not an
// error. Matches are ordered by descending similarity and increasing
// top-k only ever extends the result prefix.
type Store interface {
	// CreateCollection creates a new collection holding vectors of the
	// given dimension.
	CreateCollection(ctx context.Context, name string, dimension int) error

	// DeleteCollection deletes a collection and all its records.
	// Deleting a collection that does not exist is not an error.
	DeleteCollection(ctx context.Context, name string) error

	// CollectionExists checks whether a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Count returns the number of records in a collection.
	Count(ctx context.Context, name string) (int, error)

	// Upsert inserts or replaces records. Vector lengths are validated
	// against the collection dimension before anything is sent.
	Upsert(ctx context.Context, name string, records []Record) error

	// Query returns up to topK matches for vector, ordered by descending
	// similarity.
	Query(ctx context.Context, name string, vector []float32, topK int) ([]Match, error)

	// Close closes the store connection and releases resources.
	Close() error
}

// validateRecords checks records for emptiness and dimension mismatches.
func validateRecords(records []Record, dimension int) error {
	if len(records) == 0 {
		return ErrEmptyRecords
	}
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record at index %d has empty ID", i)
		}
		if len(r.Vector) != dimension {
			return fmt.Errorf("%w: record %q has dimension %d, collection expects %d",
				ErrDimensionMismatch, r.ID, len(r.Vector), dimension)
		}
	}
	return nil
}
