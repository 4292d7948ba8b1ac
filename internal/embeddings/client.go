// Package embeddings provides embedding generation via an OpenAI-compatible API.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAuth indicates rejected credentials. Not retryable.
	ErrAuth = errors.New("embedding authentication failed")

	// ErrRateLimited indicates the service rejected the request with 429.
	ErrRateLimited = errors.New("embedding rate limited")

	// ErrInputTooLong indicates the input exceeded the model's token limit.
	ErrInputTooLong = errors.New("embedding input exceeds model token limit")

	// ErrDimensionMismatch indicates the service returned a vector whose
	// length differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "text-embedding-3-small"
	defaultDimension   = 1536
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultRateLimit   = 10 // requests per second
	defaultBurst       = 5
)

// Config holds configuration for the embedding client.
type Config struct {
	// BaseURL is the base URL for the embedding API.
	// Default: https://api.openai.com/v1
	BaseURL string

	// Model is the embedding model to use.
	// Default: text-embedding-3-small
	Model string

	// APIKey is the API key. Required.
	APIKey string

	// Dimension is the expected embedding dimension.
	// Default: 1536 (text-embedding-3-small)
	Dimension int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Dimension == 0 {
		c.Dimension = defaultDimension
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	return nil
}

// Client generates embeddings via an OpenAI-compatible /embeddings endpoint.
//
// The client distinguishes authentication failures (fatal), rate limits and
// transport errors (retried with exponential backoff) and validates every
// returned vector against the configured dimension before handing it to the
// caller.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new embedding client with the given configuration.
func NewClient(config Config) (*Client, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

// Dimension returns the configured embedding dimension.
func (c *Client) Dimension() int {
	return c.config.Dimension
}

// embeddingRequest is the request body for the embeddings endpoint.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the response body from the embeddings endpoint.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// apiError is the error envelope returned by OpenAI-compatible services.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// EmbedDocuments generates embeddings for multiple texts in a single
// request. Results are returned in input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: text at index %d is empty", ErrEmptyInput, i)
		}
	}

	var vectors [][]float32
	err := c.withRetries(ctx, func() error {
		var reqErr error
		vectors, reqErr = c.doRequest(ctx, texts)
		return reqErr
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// withRetries runs operation, retrying transient failures with exponential
// backoff. Rate limiting is applied before every attempt.
func (c *Client) withRetries(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return err
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single embeddings API call.
func (c *Client) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model: c.config.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp.StatusCode, respBody)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrEmbeddingFailed, len(texts), len(parsed.Data))
	}

	// The API may return data out of order; restore input order.
	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) != c.config.Dimension {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, c.config.Dimension, len(d.Embedding))
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// classifyError maps an API error response to the error taxonomy.
func (c *Client) classifyError(status int, body []byte) error {
	message := string(body)
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrAuth, status, message)
	case status == http.StatusTooManyRequests:
		return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, message)}
	case status >= 500:
		return &retryableError{err: fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, status, message)}
	case status == http.StatusBadRequest && isTokenLimitMessage(message):
		return fmt.Errorf("%w: %s", ErrInputTooLong, message)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, status, message)
	}
}

// isTokenLimitMessage reports whether an API message describes a
// token/context length rejection.
func isTokenLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "maximum context length") ||
		strings.Contains(lower, "token") && strings.Contains(lower, "limit")
}

// retryableError marks an error as transient.
type retryableError struct {
	err error
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// isRetryableError reports whether err should be retried.
func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
