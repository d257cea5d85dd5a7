package repositories

import (
	"context"

	"ehr-chatbot/internal/models"
)

// KnowledgeBase is the condition-tagged question/answer store searched by the retriever.
// Implementations never filter by condition; callers decide what a cross-condition hit means.
type KnowledgeBase interface {
	// Search returns up to limit nearest entries, best first
	Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error)

	// ListConditions returns the distinct condition id -> name pairs present in the store
	ListConditions(ctx context.Context) (map[string]string, error)

	// EnsureCollection creates the backing collection when missing
	EnsureCollection(ctx context.Context) error

	// StoreEntries upserts entries with their precomputed embeddings
	StoreEntries(ctx context.Context, entries []models.KnowledgeEntry, embeddings [][]float32) error

	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// SearchResult represents a single hit from vector similarity search
type SearchResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Score    float64                `json:"score"` // similarity in [0, 1], higher is better
	Distance float64                `json:"distance"`
	Metadata map[string]interface{} `json:"metadata"`
}

// MetadataString reads a string metadata value, returning "" when absent or not a string
func (r SearchResult) MetadataString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	if v, ok := r.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// VectorRepositoryError represents errors from the knowledge base
type VectorRepositoryError struct {
	Operation string
	Err       error
	Message   string
}

func (e *VectorRepositoryError) Error() string {
	msg := e.Operation
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return msg + ": unknown error"
	}
	return msg
}

func (e *VectorRepositoryError) Unwrap() error {
	return e.Err
}

// NewVectorRepositoryError creates a new knowledge base error
func NewVectorRepositoryError(operation string, err error, message string) *VectorRepositoryError {
	return &VectorRepositoryError{
		Operation: operation,
		Err:       err,
		Message:   message,
	}
}
