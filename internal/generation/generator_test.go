package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid configuration",
			config:  Config{APIKey: "sk-test123"},
			wantErr: false,
		},
		{
			name:    "missing API key",
			config:  Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewGenerator(tt.config)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				require.NoError(t, err)
				assert.Equal(t, defaultModel, gen.config.Model)
			}
		})
	}
}

func newTestGenerator(t *testing.T, url string) *Generator {
	t.Helper()
	gen, err := NewGenerator(Config{
		BaseURL:    url,
		APIKey:     "sk-test123",
		MaxRetries: 1,
	})
	require.NoError(t, err)
	return gen
}

func completionFixture(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

func TestGenerate(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(completionFixture("Workflows automate tasks."))
	}))
	defer server.Close()

	gen := newTestGenerator(t, server.URL)

	answer, err := gen.Generate(context.Background(), "Workflows let you automate tasks.", "What are workflows?")
	require.NoError(t, err)
	assert.Equal(t, "Workflows automate tasks.", answer)

	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, systemPersona, gotReq.Messages[0].Content)
	assert.Contains(t, gotReq.Messages[1].Content, "Workflows let you automate tasks.")
	assert.Contains(t, gotReq.Messages[1].Content, "Q: What are workflows?")
}

func TestGenerate_EmptyContext(t *testing.T) {
	gen := newTestGenerator(t, "http://localhost:1")

	_, err := gen.Generate(context.Background(), "", "question")
	assert.ErrorIs(t, err, ErrEmptyContext)
}

func TestGenerate_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided"}}`))
	}))
	defer server.Close()

	gen := newTestGenerator(t, server.URL)

	_, err := gen.Generate(context.Background(), "context", "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	gen := newTestGenerator(t, server.URL)

	_, err := gen.Generate(context.Background(), "context", "question")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerate_RetriesServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(completionFixture("recovered"))
	}))
	defer server.Close()

	gen := newTestGenerator(t, server.URL)

	answer, err := gen.Generate(context.Background(), "context", "question")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.Equal(t, 2, attempts)
}
