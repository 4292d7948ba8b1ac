// Package generation produces answers from retrieved documentation via an
// OpenAI-compatible chat completion API.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyContext indicates Generate was called without retrieved
	// context. Callers must check for matches before invoking the
	// generator to avoid answers hallucinated from model priors.
	ErrEmptyContext = errors.New("empty context")

	// ErrAuth indicates rejected credentials. Not retryable.
	ErrAuth = errors.New("completion authentication failed")

	// ErrRateLimited indicates the service rejected the request with 429.
	ErrRateLimited = errors.New("completion rate limited")

	// ErrGeneration indicates completion service failure or refusal.
	ErrGeneration = errors.New("answer generation failed")
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 2
	defaultBaseBackoff = time.Second
	defaultRateLimit   = 2 // requests per second
	defaultBurst       = 2

	// systemPersona restricts answers to the supplied documentation.
	systemPersona = "You are a helpful assistant that only answers based on the supplied documentation."
)

// Config holds configuration for the generator.
type Config struct {
	// BaseURL is the base URL for the chat completion API.
	// Default: https://api.openai.com/v1
	BaseURL string

	// Model is the chat model to use.
	// Default: gpt-4
	Model string

	// APIKey is the API key. Required.
	APIKey string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Kept low: a repeated answer generation is the most
	// expensive call in the pipeline.
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
	return nil
}

// Generator generates answers grounded in retrieved documentation.
type Generator struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGenerator creates a new Generator with the given configuration.
func NewGenerator(config Config) (*Generator, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &Generator{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces an answer to question using contextText as the only
// source of truth. contextText must be non-empty; the caller is expected
// to return a not-found outcome instead of calling Generate when
// retrieval produced no matches.
func (g *Generator) Generate(ctx context.Context, contextText, question string) (string, error) {
	if contextText == "" {
		return "", ErrEmptyContext
	}
	if question == "" {
		return "", fmt.Errorf("%w: question cannot be empty", ErrGeneration)
	}

	prompt := fmt.Sprintf("Use the following documentation to answer the question.\n\n%s\n\nQ: %s\nA:", contextText, question)

	req := chatRequest{
		Model: g.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPersona},
			{Role: "user", Content: prompt},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		answer, err := g.doRequest(ctx, req)
		if err == nil {
			return answer, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single chat completion API call.
func (g *Generator) doRequest(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("%w: %v", ErrGeneration, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyError(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from API", ErrGeneration)
	}

	return parsed.Choices[0].Message.Content, nil
}

// classifyError maps an API error response to the error taxonomy.
func classifyError(status int, body []byte) error {
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
		return &retryableError{err: fmt.Errorf("%w: status %d: %s", ErrGeneration, status, message)}
	default:
		return fmt.Errorf("%w: status %d: %s", ErrGeneration, status, message)
	}
}

// retryableError marks an error as transient.
type retryableError struct {
	err error
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
