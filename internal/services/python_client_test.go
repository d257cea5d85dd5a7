package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helpers
// ============================================================================

func setupTestServer(t *testing.T, retries int, handler http.HandlerFunc) *PythonClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewPythonClient(PythonClientOptions{BaseURL: server.URL + "/", Retries: retries, Timeout: 5 * time.Second})
	client.backoffUnit = time.Millisecond
	return client
}

// ============================================================================
// Embed Tests
// ============================================================================

func TestPythonClient_EmbedQuery(t *testing.T) {
	client := setupTestServer(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/query", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is hba1c", req["text"])
		assert.Equal(t, true, req["use_cache"])
		_, hasModel := req["model"]
		assert.False(t, hasModel)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float32{0.1, 0.2}, Dimension: 2, Model: "mini"})
	})

	vec, err := client.EmbedQuery(context.Background(), "what is hba1c")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestPythonClient_EmbedQueryEmpty(t *testing.T) {
	client := setupTestServer(t, 0, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbeddingResponse{})
	})

	_, err := client.EmbedQuery(context.Background(), "x")
	assert.ErrorContains(t, err, "empty embedding")
}

func TestPythonClient_EmbedBatch(t *testing.T) {
	client := setupTestServer(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/batch", r.URL.Path)

		var req embedBatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 32, req.BatchSize)

		resp := EmbedBatchResponse{TotalEmbeddings: len(req.Texts)}
		for range req.Texts {
			resp.Embeddings = append(resp.Embeddings, []float32{1})
		}
		json.NewEncoder(w).Encode(resp)
	})

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)

	empty, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPythonClient_EmbedBatchCountMismatch(t *testing.T) {
	client := setupTestServer(t, 0, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(EmbedBatchResponse{Embeddings: [][]float32{{1}}})
	})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "got 1 embeddings for 2 texts")
}

// ============================================================================
// Retry Tests
// ============================================================================

func TestPythonClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := setupTestServer(t, 2, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(EmbeddingResponse{Embedding: []float32{1}})
	})

	vec, err := client.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPythonClient_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	client := setupTestServer(t, 1, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.EmbedQuery(context.Background(), "q")
	assert.ErrorContains(t, err, "request failed after 1 retries")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPythonClient_NoRetryOnClientError(t *testing.T) {
	var calls int32
	client := setupTestServer(t, 3, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad text", http.StatusUnprocessableEntity)
	})

	_, err := client.EmbedQuery(context.Background(), "q")
	assert.ErrorContains(t, err, "HTTP 422")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// ============================================================================
// Health Tests
// ============================================================================

func TestPythonClient_HealthCheck(t *testing.T) {
	healthy := setupTestServer(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, healthy.HealthCheck(context.Background()))

	unhealthy := setupTestServer(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	assert.ErrorContains(t, unhealthy.HealthCheck(context.Background()), "status 503")
}
