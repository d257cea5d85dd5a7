package repositories

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ehr-chatbot/internal/db"
	"ehr-chatbot/internal/models"
)

const (
	conditionPageSize = 1000
	conditionMaxPages = 100
)

// ChromaKnowledgeBase implements KnowledgeBase on a single ChromaDB collection
type ChromaKnowledgeBase struct {
	client     *db.ChromaDBClient
	collection string
	logger     *zap.SugaredLogger
}

// NewChromaKnowledgeBase creates a ChromaDB-backed knowledge base
func NewChromaKnowledgeBase(client *db.ChromaDBClient, collection string, logger *zap.SugaredLogger) *ChromaKnowledgeBase {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ChromaKnowledgeBase{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

// Search runs an unfiltered nearest-neighbour query
func (r *ChromaKnowledgeBase) Search(ctx context.Context, embedding []float32, limit int) ([]SearchResult, error) {
	if len(embedding) == 0 {
		return nil, NewVectorRepositoryError("search", nil, "empty query embedding")
	}
	if limit <= 0 {
		limit = 1
	}

	resp, err := r.client.Query(ctx, r.collection, [][]float32{embedding}, limit, nil)
	if err != nil {
		return nil, NewVectorRepositoryError("search", err, "query failed")
	}

	if len(resp.IDs) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		result := SearchResult{ID: id}
		if len(resp.Documents) > 0 && len(resp.Documents[0]) > i {
			result.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && len(resp.Metadatas[0]) > i {
			result.Metadata = resp.Metadatas[0][i]
		}
		if len(resp.Distances) > 0 && len(resp.Distances[0]) > i {
			result.Distance = float64(resp.Distances[0][i])
		}

		// cosine space: similarity = 1 - distance
		result.Score = clampUnit(1 - result.Distance)
		results = append(results, result)
	}

	return results, nil
}

// ListConditions pages through entry metadata and collects distinct conditions
func (r *ChromaKnowledgeBase) ListConditions(ctx context.Context) (map[string]string, error) {
	conditions := make(map[string]string)

	for page := 0; page < conditionMaxPages; page++ {
		resp, err := r.client.GetDocuments(ctx, r.collection, nil, conditionPageSize, page*conditionPageSize)
		if err != nil {
			return nil, NewVectorRepositoryError("list_conditions", err, "")
		}

		for _, meta := range resp.Metadatas {
			id, _ := meta[models.MetaConditionID].(string)
			if id == "" {
				continue
			}
			name, _ := meta[models.MetaConditionName].(string)
			if name == "" {
				name = id
			}
			if _, seen := conditions[id]; !seen {
				conditions[id] = name
			}
		}

		if len(resp.IDs) < conditionPageSize {
			break
		}
	}

	return conditions, nil
}

// EnsureCollection creates the collection with cosine distance when missing
func (r *ChromaKnowledgeBase) EnsureCollection(ctx context.Context) error {
	_, err := r.client.GetCollection(ctx, r.collection)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrCollectionNotFound) {
		return NewVectorRepositoryError("ensure_collection", err, "")
	}

	r.logger.Infof("Creating knowledge base collection %s", r.collection)
	if _, err := r.client.CreateCollection(ctx, r.collection, map[string]interface{}{"hnsw:space": "cosine"}); err != nil {
		return NewVectorRepositoryError("ensure_collection", err, "failed to create collection: "+r.collection)
	}
	return nil
}

// StoreEntries upserts entries keyed by their id
func (r *ChromaKnowledgeBase) StoreEntries(ctx context.Context, entries []models.KnowledgeEntry, embeddings [][]float32) error {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) != len(embeddings) {
		return NewVectorRepositoryError("store_entries", nil,
			fmt.Sprintf("got %d entries but %d embeddings", len(entries), len(embeddings)))
	}

	ids := make([]string, len(entries))
	documents := make([]string, len(entries))
	metadatas := make([]map[string]interface{}, len(entries))
	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return NewVectorRepositoryError("store_entries", err, "")
		}
		ids[i] = entry.ID
		documents[i] = entry.Document()
		metadatas[i] = entry.Metadata()
	}

	if err := r.client.UpsertDocuments(ctx, r.collection, ids, documents, embeddings, metadatas); err != nil {
		return NewVectorRepositoryError("store_entries", err, fmt.Sprintf("failed to store %d entries", len(entries)))
	}
	return nil
}

// Count returns the number of entries in the collection
func (r *ChromaKnowledgeBase) Count(ctx context.Context) (int, error) {
	count, err := r.client.CountCollection(ctx, r.collection)
	if err != nil {
		return 0, NewVectorRepositoryError("count", err, "")
	}
	return count, nil
}

// Ping checks the ChromaDB heartbeat
func (r *ChromaKnowledgeBase) Ping(ctx context.Context) error {
	if err := r.client.Heartbeat(ctx); err != nil {
		return NewVectorRepositoryError("ping", err, "")
	}
	return nil
}

// Close releases idle HTTP connections
func (r *ChromaKnowledgeBase) Close() error {
	r.client.Close()
	return nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
