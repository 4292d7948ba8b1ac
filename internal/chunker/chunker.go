// Package chunker splits documentation text into overlapping segments
// suitable for embedding.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates invalid chunking parameters.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunk is a bounded-length segment of a source document.
type Chunk struct {
	// Index is the sequence position of the chunk within the document.
	Index int

	// Text is the chunk content.
	Text string
}

// ID returns the derived record identifier for the chunk.
func (c Chunk) ID() string {
	return fmt.Sprintf("chunk-%d", c.Index)
}

// Config holds chunking parameters.
type Config struct {
	// ChunkSize is the maximum chunk length in runes.
	// Default: 500
	ChunkSize int

	// Overlap is the number of runes shared between consecutive chunks.
	// Must be smaller than ChunkSize.
	// Default: 50
	Overlap int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 500
	}
	if c.Overlap == 0 {
		c.Overlap = 50
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.Overlap, c.ChunkSize)
	}
	return nil
}

// Splitter splits text into overlapping fixed-size chunks, preferring
// paragraph, line, sentence and word boundaries before falling back to a
// hard rune cut.
//
// Splitting is deterministic: the same input and configuration always
// produce the same chunk sequence. Consecutive chunks share exactly
// Overlap runes, so the original text can be reconstructed by dropping
// the first Overlap runes of every chunk after the first.
type Splitter struct {
	config Config
}

// NewSplitter creates a Splitter with the given configuration.
func NewSplitter(config Config) (*Splitter, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &Splitter{config: config}, nil
}

// Split splits text into chunks. Empty or whitespace-only input yields an
// empty sequence, not an error.
func (s *Splitter) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	size := s.config.ChunkSize
	overlap := s.config.Overlap

	var chunks []Chunk
	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Text:  string(runes[start:]),
			})
			return chunks
		}

		// Prefer a natural boundary inside the window. The cut must stay
		// past start+overlap so the next window still advances.
		end = boundaryCut(runes, start+overlap+1, end)

		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
		start = end - overlap
	}
}

// boundaryCut searches backwards from hard for the best cut point in
// (min, hard]. Paragraph breaks win over line breaks, line breaks over
// sentence ends, sentence ends over spaces. Returns hard when the window
// has no natural boundary.
func boundaryCut(runes []rune, min, hard int) int {
	bestKind := -1
	best := hard

	for i := hard; i > min; i-- {
		kind := boundaryKind(runes, i)
		if kind > bestKind {
			bestKind = kind
			best = i
			if kind == 3 {
				break
			}
		}
	}

	if bestKind < 0 {
		return hard
	}
	return best
}

// boundaryKind classifies the cut point just before index i.
// 3: paragraph break, 2: line break, 1: sentence end, 0: space, -1: none.
func boundaryKind(runes []rune, i int) int {
	prev := runes[i-1]
	switch {
	case prev == '\n':
		if i >= 2 && runes[i-2] == '\n' {
			return 3
		}
		return 2
	case prev == ' ':
		if i >= 2 && isSentenceEnd(runes[i-2]) {
			return 1
		}
		return 0
	default:
		return -1
	}
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
