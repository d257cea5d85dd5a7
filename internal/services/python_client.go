package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Embedder turns text into vectors for the knowledge base
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	HealthCheck(ctx context.Context) error
}

// PythonClient calls the Python compute service embedding endpoints
type PythonClient struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	retries     int
	backoffUnit time.Duration
	batchSize   int
}

// PythonClientOptions configures the compute service client
type PythonClientOptions struct {
	BaseURL   string
	Model     string // empty uses the service default
	Timeout   time.Duration
	Retries   int
	BatchSize int
}

// NewPythonClient creates a new Python client; zero-valued options take defaults
func NewPythonClient(opts PythonClientOptions) *PythonClient {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}

	return &PythonClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retries:     opts.Retries,
		backoffUnit: time.Second,
		batchSize:   opts.BatchSize,
	}
}

// ============================================================================
// Request/Response Models
// ============================================================================

type embedQueryRequest struct {
	Text     string  `json:"text"`
	Model    *string `json:"model,omitempty"`
	UseCache bool    `json:"use_cache"`
}

type embedBatchRequest struct {
	Texts     []string `json:"texts"`
	Model     *string  `json:"model,omitempty"`
	BatchSize int      `json:"batch_size"`
	UseCache  bool     `json:"use_cache"`
}

// EmbeddingResponse represents the response from embed/query
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
	Cached    bool      `json:"cached"`
}

// EmbedBatchResponse represents the response from embed/batch
type EmbedBatchResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	Dimension       int         `json:"dimension"`
	Model           string      `json:"model"`
	TotalEmbeddings int         `json:"total_embeddings"`
}

// ============================================================================
// HTTP Helper Methods
// ============================================================================

// doRequest performs an HTTP request with retry logic
func (c *PythonClient) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := time.Duration(attempt*attempt) * c.backoffUnit
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.makeRequest(ctx, method, endpoint, body)
		if err == nil && resp.StatusCode < 500 {
			// Success or client error (don't retry 4xx)
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.retries, lastErr)
}

// makeRequest creates and executes an HTTP request
func (c *PythonClient) makeRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// parseResponse reads and parses JSON response
func parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *PythonClient) modelPtr() *string {
	if c.model == "" {
		return nil
	}
	m := c.model
	return &m
}

// ============================================================================
// Embedding Methods
// ============================================================================

// EmbedQuery embeds a single search query
func (c *PythonClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/embed/query", embedQueryRequest{
		Text:     text,
		Model:    c.modelPtr(),
		UseCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embed query request failed: %w", err)
	}

	var result EmbeddingResponse
	if err := parseResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embed query: empty embedding")
	}
	return result.Embedding, nil
}

// EmbedBatch embeds documents for ingestion
func (c *PythonClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/embed/batch", embedBatchRequest{
		Texts:     texts,
		Model:     c.modelPtr(),
		BatchSize: c.batchSize,
		UseCache:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("embed batch request failed: %w", err)
	}

	var result EmbedBatchResponse
	if err := parseResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed batch: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}

// HealthCheck checks the compute service health endpoint once, without retries
func (c *PythonClient) HealthCheck(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return fmt.Errorf("embedding service not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}
	return nil
}
