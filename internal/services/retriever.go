package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ehr-chatbot/internal/metrics"
	"ehr-chatbot/internal/models"
	"ehr-chatbot/internal/repositories"

	"go.uber.org/zap"
)

const (
	DefaultRetrievalTimeout = 5 * time.Second
	DefaultSearchLimit      = 5
	DefaultMatchCacheTTL    = 5 * time.Minute
)

// Searcher is the part of the knowledge base the retriever needs
type Searcher interface {
	Search(ctx context.Context, embedding []float32, limit int) ([]repositories.SearchResult, error)
}

// RetrieverConfig tunes the knowledge retriever
type RetrieverConfig struct {
	Timeout     time.Duration
	SearchLimit int
	CacheTTL    time.Duration // zero disables the match cache
}

// KnowledgeRetriever finds the single best knowledge base answer for a query.
// Search is never restricted to the expected condition.
type KnowledgeRetriever struct {
	embedder Embedder
	kb       Searcher
	config   RetrieverConfig
	cache    *matchCache
	logger   *zap.SugaredLogger
}

// NewKnowledgeRetriever creates a retriever
func NewKnowledgeRetriever(embedder Embedder, kb Searcher, config RetrieverConfig, logger *zap.SugaredLogger) *KnowledgeRetriever {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRetrievalTimeout
	}
	if config.SearchLimit <= 0 {
		config.SearchLimit = DefaultSearchLimit
	}

	r := &KnowledgeRetriever{
		embedder: embedder,
		kb:       kb,
		config:   config,
		logger:   logger,
	}
	if config.CacheTTL > 0 {
		r.cache = newMatchCache(config.CacheTTL)
	}
	return r
}

// Retrieve returns the best match for query. Backend failures wrap
// models.ErrRetrievalUnavailable; an empty result is models.ErrNoMatch.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, query, expectedConditionID string) (*models.RetrievalMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.ErrNoMatch
	}

	key := normalizeQuery(query)
	candidates, ok := r.cache.get(key)
	if !ok {
		var err error
		candidates, err = r.search(ctx, query)
		if err != nil {
			return nil, err
		}
		r.cache.set(key, candidates)
	}

	best := pickBest(candidates, expectedConditionID)
	if best == nil {
		return nil, models.ErrNoMatch
	}
	return best, nil
}

// CacheStats reports match cache counters; nil when the cache is disabled
func (r *KnowledgeRetriever) CacheStats() map[string]interface{} {
	if r.cache == nil {
		return nil
	}
	return r.cache.Stats()
}

func (r *KnowledgeRetriever) search(ctx context.Context, query string) ([]models.RetrievalMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	// 1. Embed the query
	start := time.Now()
	embedding, err := r.embedder.EmbedQuery(ctx, query)
	metrics.ObserveBackend(metrics.BackendEmbedding, start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", models.ErrRetrievalUnavailable, err)
	}

	// 2. Nearest neighbours across every condition
	start = time.Now()
	results, err := r.kb.Search(ctx, embedding, r.config.SearchLimit)
	metrics.ObserveBackend(metrics.BackendKnowledgeBase, start, err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: search timed out after %s", models.ErrRetrievalUnavailable, r.config.Timeout)
		}
		return nil, fmt.Errorf("%w: search: %v", models.ErrRetrievalUnavailable, err)
	}

	// 3. Keep only entries that say which condition they answer
	candidates := make([]models.RetrievalMatch, 0, len(results))
	for _, res := range results {
		conditionID := res.MetadataString(models.MetaConditionID)
		if conditionID == "" {
			r.logger.Debugf("skipping knowledge base entry %s without condition_id", res.ID)
			continue
		}

		answer := res.MetadataString(models.MetaAnswer)
		if answer == "" {
			answer = res.Text
		}
		name := res.MetadataString(models.MetaConditionName)
		if name == "" {
			name = conditionID
		}

		candidates = append(candidates, models.RetrievalMatch{
			AnswerText:           answer,
			MatchedConditionID:   conditionID,
			MatchedConditionName: name,
			Score:                clampScore(res.Score),
			FollowUp:             res.MetadataString(models.MetaFollowUp),
		})
	}
	return candidates, nil
}

// pickBest returns the highest scoring candidate; ties prefer the expected condition
func pickBest(candidates []models.RetrievalMatch, expectedConditionID string) *models.RetrievalMatch {
	var best *models.RetrievalMatch
	for i := range candidates {
		c := &candidates[i]
		switch {
		case best == nil, c.Score > best.Score:
			best = c
		case c.Score == best.Score &&
			c.MatchedConditionID == expectedConditionID &&
			best.MatchedConditionID != expectedConditionID:
			best = c
		}
	}
	if best == nil {
		return nil
	}
	match := *best
	return &match
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// ============================================================================
// Match cache
// ============================================================================

type matchCache struct {
	mu      sync.Mutex
	entries map[string]matchCacheEntry
	ttl     time.Duration
	now     func() time.Time
	hits    int64
	misses  int64
}

type matchCacheEntry struct {
	candidates []models.RetrievalMatch
	expiresAt  time.Time
}

func newMatchCache(ttl time.Duration) *matchCache {
	return &matchCache{
		entries: make(map[string]matchCacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// get is safe on a nil cache
func (c *matchCache) get(key string) ([]models.RetrievalMatch, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		if ok {
			delete(c.entries, key)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.candidates, true
}

func (c *matchCache) set(key string, candidates []models.RetrievalMatch) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = matchCacheEntry{candidates: candidates, expiresAt: now.Add(c.ttl)}
}

func (c *matchCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	total := c.hits + c.misses
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"hits":     c.hits,
		"misses":   c.misses,
		"size":     len(c.entries),
		"hit_rate": hitRate,
	}
}
