package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitter(t *testing.T) {
	tests := []struct {
		name       string
		config     Config
		wantErr    bool
		errMessage string
	}{
		{
			name:    "defaults",
			config:  Config{},
			wantErr: false,
		},
		{
			name:    "explicit sizes",
			config:  Config{ChunkSize: 100, Overlap: 10},
			wantErr: false,
		},
		{
			name:    "zero overlap",
			config:  Config{ChunkSize: 100, Overlap: -0},
			wantErr: false,
		},
		{
			name:       "negative chunk size",
			config:     Config{ChunkSize: -1, Overlap: 0},
			wantErr:    true,
			errMessage: "chunk size must be positive",
		},
		{
			name:       "negative overlap",
			config:     Config{ChunkSize: 100, Overlap: -5},
			wantErr:    true,
			errMessage: "overlap cannot be negative",
		},
		{
			name:       "overlap equals chunk size",
			config:     Config{ChunkSize: 100, Overlap: 100},
			wantErr:    true,
			errMessage: "must be smaller than chunk size",
		},
		{
			name:       "overlap exceeds chunk size",
			config:     Config{ChunkSize: 100, Overlap: 150},
			wantErr:    true,
			errMessage: "must be smaller than chunk size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splitter, err := NewSplitter(tt.config)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errMessage)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, splitter)
			}
		})
	}
}

func TestSplit_Empty(t *testing.T) {
	splitter, err := NewSplitter(Config{ChunkSize: 500, Overlap: 50})
	require.NoError(t, err)

	assert.Empty(t, splitter.Split(""))
	assert.Empty(t, splitter.Split("   \n\n  \t"))
}

func TestSplit_SingleChunk(t *testing.T) {
	splitter, err := NewSplitter(Config{ChunkSize: 500, Overlap: 50})
	require.NoError(t, err)

	text := "HubSpot workflows let you automate tasks."
	chunks := splitter.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, "chunk-0", chunks[0].ID())
}

func TestSplit_Properties(t *testing.T) {
	texts := []string{
		strings.Repeat("Workflows automate repetitive tasks. ", 40),
		"para one\n\npara two\n\n" + strings.Repeat("line\n", 100),
		strings.Repeat("x", 1234),
		"short",
		strings.Repeat("word ", 300) + "tail",
	}
	configs := []Config{
		{ChunkSize: 500, Overlap: 50},
		{ChunkSize: 100, Overlap: 0},
		{ChunkSize: 64, Overlap: 63},
		{ChunkSize: 50, Overlap: 25},
	}

	for _, text := range texts {
		for _, cfg := range configs {
			splitter, err := NewSplitter(cfg)
			require.NoError(t, err)

			chunks := splitter.Split(text)
			require.NotEmpty(t, chunks, "non-empty text must produce chunks")

			// Every chunk respects the size bound and indices are sequential.
			for i, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c.Text)), cfg.ChunkSize)
				assert.Equal(t, i, c.Index)
			}

			// Concatenating chunks minus overlaps reconstructs the input.
			var b strings.Builder
			for i, c := range chunks {
				runes := []rune(c.Text)
				if i == 0 {
					b.WriteString(c.Text)
				} else {
					require.GreaterOrEqual(t, len(runes), cfg.Overlap)
					b.WriteString(string(runes[cfg.Overlap:]))
				}
			}
			assert.Equal(t, text, b.String(),
				"reconstruction failed for size=%d overlap=%d", cfg.ChunkSize, cfg.Overlap)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	splitter, err := NewSplitter(Config{ChunkSize: 120, Overlap: 30})
	require.NoError(t, err)

	text := strings.Repeat("Deterministic splitting is required for stable chunk ids. ", 30)
	first := splitter.Split(text)
	second := splitter.Split(text)

	assert.Equal(t, first, second)
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	splitter, err := NewSplitter(Config{ChunkSize: 50, Overlap: 0})
	require.NoError(t, err)

	text := "first paragraph here.\n\nsecond paragraph follows and keeps going for a while."
	chunks := splitter.Split(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"),
		"expected first chunk to end at the paragraph break, got %q", chunks[0].Text)
}

func TestSplit_MaximalOverlapTerminates(t *testing.T) {
	splitter, err := NewSplitter(Config{ChunkSize: 10, Overlap: 9})
	require.NoError(t, err)

	text := strings.Repeat("a", 100)
	chunks := splitter.Split(text)

	// step of one rune per chunk: len - size + 1 windows
	assert.Len(t, chunks, 91)
}
