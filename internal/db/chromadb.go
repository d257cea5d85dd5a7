package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrCollectionNotFound is returned when a named collection does not exist
var ErrCollectionNotFound = errors.New("collection not found")

// ChromaDBClient talks to the ChromaDB v2 REST API over plain HTTP
type ChromaDBClient struct {
	rootURL    string // http://host:port
	baseURL    string // rootURL + /api/v2/tenants/{tenant}/databases/{database}
	httpClient *http.Client
	tenant     string
	database   string

	mu            sync.RWMutex
	collectionIDs map[string]string
}

// ChromaDBConfig holds configuration for ChromaDB connection
type ChromaDBConfig struct {
	URL      string // overrides Host/Port when set, e.g. http://chroma:8000
	Host     string
	Port     int
	Tenant   string // default: "default_tenant"
	Database string // default: "default_database"
	Timeout  time.Duration
}

// Collection represents a ChromaDB collection
type Collection struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata"`
}

// GetResponse represents the response from a get request
type GetResponse struct {
	IDs       []string                 `json:"ids"`
	Documents []string                 `json:"documents"`
	Metadatas []map[string]interface{} `json:"metadatas"`
}

// QueryResponse represents the response from a nearest-neighbour query
type QueryResponse struct {
	IDs       [][]string                 `json:"ids"`
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float32                `json:"distances"`
}

// NewChromaDBClient creates a new ChromaDB client with v2 API support
func NewChromaDBClient(config ChromaDBConfig) *ChromaDBClient {
	if config.Tenant == "" {
		config.Tenant = "default_tenant"
	}
	if config.Database == "" {
		config.Database = "default_database"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	root := strings.TrimRight(config.URL, "/")
	if root == "" {
		root = fmt.Sprintf("http://%s:%d", config.Host, config.Port)
	}

	return &ChromaDBClient{
		rootURL:       root,
		baseURL:       fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s", root, config.Tenant, config.Database),
		httpClient:    &http.Client{Timeout: config.Timeout},
		tenant:        config.Tenant,
		database:      config.Database,
		collectionIDs: make(map[string]string),
	}
}

// Heartbeat checks if ChromaDB is alive
func (c *ChromaDBClient) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rootURL+"/api/v2/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to create heartbeat request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat failed with status: %d", resp.StatusCode)
	}
	return nil
}

// CreateCollection creates a collection (cosine space unless metadata says otherwise)
func (c *ChromaDBClient) CreateCollection(ctx context.Context, name string, metadata map[string]interface{}) (*Collection, error) {
	if metadata == nil {
		metadata = map[string]interface{}{"hnsw:space": "cosine"}
	}

	payload := map[string]interface{}{
		"name":          name,
		"metadata":      metadata,
		"get_or_create": true,
	}

	var collection Collection
	if err := c.do(ctx, http.MethodPost, "/collections", payload, &collection, http.StatusOK, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	c.remember(collection)
	return &collection, nil
}

// GetCollection retrieves a collection by name
func (c *ChromaDBClient) GetCollection(ctx context.Context, name string) (*Collection, error) {
	var collection Collection
	err := c.do(ctx, http.MethodGet, "/collections/"+name, nil, &collection, http.StatusOK)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
		}
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}

	c.remember(collection)
	return &collection, nil
}

// CountCollection returns the number of documents in a collection
func (c *ChromaDBClient) CountCollection(ctx context.Context, name string) (int, error) {
	id, err := c.collectionID(ctx, name)
	if err != nil {
		return 0, err
	}

	var count int
	if err := c.do(ctx, http.MethodGet, "/collections/"+id+"/count", nil, &count, http.StatusOK); err != nil {
		return 0, fmt.Errorf("count collection %s: %w", name, err)
	}
	return count, nil
}

// UpsertDocuments inserts or replaces documents with precomputed embeddings
func (c *ChromaDBClient) UpsertDocuments(ctx context.Context, collectionName string, ids []string, documents []string, embeddings [][]float32, metadatas []map[string]interface{}) error {
	id, err := c.collectionID(ctx, collectionName)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"embeddings": embeddings,
	}
	if metadatas != nil {
		payload["metadatas"] = metadatas
	}

	if err := c.do(ctx, http.MethodPost, "/collections/"+id+"/upsert", payload, nil, http.StatusOK, http.StatusCreated); err != nil {
		return fmt.Errorf("upsert into %s: %w", collectionName, err)
	}
	return nil
}

// Query searches for the nResults nearest documents to each embedding
func (c *ChromaDBClient) Query(ctx context.Context, collectionName string, queryEmbeddings [][]float32, nResults int, where map[string]interface{}) (*QueryResponse, error) {
	id, err := c.collectionID(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"query_embeddings": queryEmbeddings,
		"n_results":        nResults,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if len(where) > 0 {
		payload["where"] = where
	}

	var queryResp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/collections/"+id+"/query", payload, &queryResp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("query %s: %w", collectionName, err)
	}
	return &queryResp, nil
}

// GetDocuments pages through documents, returning metadata only
func (c *ChromaDBClient) GetDocuments(ctx context.Context, collectionName string, where map[string]interface{}, limit, offset int) (*GetResponse, error) {
	id, err := c.collectionID(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"include": []string{"metadatas"},
		"limit":   limit,
	}
	if len(where) > 0 {
		payload["where"] = where
	}
	if offset > 0 {
		payload["offset"] = offset
	}

	var getResp GetResponse
	if err := c.do(ctx, http.MethodPost, "/collections/"+id+"/get", payload, &getResp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("get documents from %s: %w", collectionName, err)
	}
	return &getResp, nil
}

// Close closes the HTTP client connections
func (c *ChromaDBClient) Close() {
	c.httpClient.CloseIdleConnections()
}

// StatusError is a non-success HTTP answer from ChromaDB
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chromadb returned status %d: %s", e.StatusCode, e.Body)
}

func (c *ChromaDBClient) collectionID(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	id, ok := c.collectionIDs[name]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	collection, err := c.GetCollection(ctx, name)
	if err != nil {
		return "", err
	}
	return collection.ID, nil
}

func (c *ChromaDBClient) remember(collection Collection) {
	if collection.ID == "" || collection.Name == "" {
		return
	}
	c.mu.Lock()
	c.collectionIDs[collection.Name] = collection.ID
	c.mu.Unlock()
}

// do sends payload as JSON and decodes the answer into out when out is non-nil
func (c *ChromaDBClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}, okStatus ...int) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	accepted := false
	for _, status := range okStatus {
		if resp.StatusCode == status {
			accepted = true
			break
		}
	}
	if !accepted {
		raw, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
