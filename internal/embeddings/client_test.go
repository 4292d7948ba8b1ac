package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		config     Config
		wantErr    bool
		errMessage string
	}{
		{
			name:    "valid configuration",
			config:  Config{APIKey: "sk-test123"},
			wantErr: false,
		},
		{
			name:    "explicit model and dimension",
			config:  Config{APIKey: "sk-test123", Model: "text-embedding-3-large", Dimension: 3072},
			wantErr: false,
		},
		{
			name:       "missing API key",
			config:     Config{},
			wantErr:    true,
			errMessage: "API key required",
		},
		{
			name:       "negative dimension",
			config:     Config{APIKey: "sk-test123", Dimension: -1},
			wantErr:    true,
			errMessage: "dimension must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.Contains(t, err.Error(), tt.errMessage)
			} else {
				require.NoError(t, err)
				assert.Equal(t, defaultBaseURL, client.config.BaseURL[:len(defaultBaseURL)])
			}
		})
	}
}

// newTestClient builds a client pointed at a test server with a small
// dimension so fixtures stay readable.
func newTestClient(t *testing.T, url string, dim int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    url,
		APIKey:     "sk-test123",
		Dimension:  dim,
		MaxRetries: 1,
	})
	require.NoError(t, err)
	return client
}

func embeddingFixture(vectors ...[]float32) map[string]any {
	data := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		data[i] = map[string]any{"index": i, "embedding": v}
	}
	return map[string]any{"data": data}
}

func TestEmbedDocuments(t *testing.T) {
	var gotBody embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		vectors := make([][]float32, len(gotBody.Input))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 1, 2}
		}
		_ = json.NewEncoder(w).Encode(embeddingFixture(vectors...))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	vectors, err := client.EmbedDocuments(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 1, 2}, vectors[0])
	assert.Equal(t, []float32{1, 1, 2}, vectors[1])
	assert.Equal(t, []string{"alpha", "beta"}, gotBody.Input)
}

func TestEmbedDocuments_EmptyInput(t *testing.T) {
	client := newTestClient(t, "http://localhost:1", 3)

	_, err := client.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = client.EmbedDocuments(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingFixture([]float32{0.1, 0.2, 0.3}))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	vector, err := client.EmbedQuery(context.Background(), "what are workflows?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestEmbedQuery_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingFixture([]float32{0.1, 0.2}))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.EmbedQuery(context.Background(), "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEmbedQuery_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		wantErr error
	}{
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			message: "Incorrect API key provided",
			wantErr: ErrAuth,
		},
		{
			name:    "forbidden",
			status:  http.StatusForbidden,
			message: "access denied",
			wantErr: ErrAuth,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			message: "Rate limit reached",
			wantErr: ErrRateLimited,
		},
		{
			name:    "token limit",
			status:  http.StatusBadRequest,
			message: "This model's maximum context length is 8192 tokens",
			wantErr: ErrInputTooLong,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			message: "upstream broke",
			wantErr: ErrEmbeddingFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprintf(w, `{"error": {"message": %q}}`, tt.message)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, 3)

			_, err := client.EmbedQuery(context.Background(), "question")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestEmbedQuery_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(embeddingFixture([]float32{1, 2, 3}))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	vector, err := client.EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vector)
	assert.Equal(t, 2, attempts)
}

func TestEmbedQuery_AuthNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	_, err := client.EmbedQuery(context.Background(), "question")
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, attempts)
}
