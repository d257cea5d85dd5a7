package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"ehr-chatbot/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRegistryTTL     = 5 * time.Minute
	registryFailureTTL     = 30 * time.Second
	registryRefreshTimeout = 10 * time.Second
)

// ConditionSource lists the distinct conditions present in the knowledge base
type ConditionSource interface {
	ListConditions(ctx context.Context) (map[string]string, error)
}

// ConditionRegistry caches the condition id to display name map
type ConditionRegistry struct {
	source   ConditionSource
	fallback map[string]string
	ttl      time.Duration
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu         sync.RWMutex
	snapshot   map[string]string
	fromSource bool // snapshot came from the knowledge base, not the fallback set
	expiresAt  time.Time

	group singleflight.Group
}

// NewConditionRegistry creates a registry; a nil fallback uses models.DefaultConditions
func NewConditionRegistry(source ConditionSource, fallback map[string]string, ttl time.Duration, logger *zap.SugaredLogger) *ConditionRegistry {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	if len(fallback) == 0 {
		fallback = models.DefaultConditions
	}

	return &ConditionRegistry{
		source:   source,
		fallback: copyConditions(fallback),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve returns the condition registered under id
func (r *ConditionRegistry) Resolve(ctx context.Context, id string) (models.Condition, bool) {
	conditions := r.current(ctx)
	name, ok := conditions[id]
	if !ok {
		return models.Condition{}, false
	}
	return models.Condition{ID: id, DisplayName: name}, true
}

// IsRegistered reports whether id is a known condition
func (r *ConditionRegistry) IsRegistered(ctx context.Context, id string) bool {
	_, ok := r.Resolve(ctx, id)
	return ok
}

// List returns a copy of the id to display name map
func (r *ConditionRegistry) List(ctx context.Context) map[string]string {
	return copyConditions(r.current(ctx))
}

// Sorted returns conditions ordered by display name
func (r *ConditionRegistry) Sorted(ctx context.Context) []models.Condition {
	conditions := r.current(ctx)
	out := make([]models.Condition, 0, len(conditions))
	for id, name := range conditions {
		out = append(out, models.Condition{ID: id, DisplayName: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].ID < out[j].ID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}

// Refresh reloads the snapshot from the source regardless of expiry
func (r *ConditionRegistry) Refresh(ctx context.Context) map[string]string {
	return copyConditions(r.refresh(ctx))
}

func (r *ConditionRegistry) current(ctx context.Context) map[string]string {
	r.mu.RLock()
	snapshot, expiresAt := r.snapshot, r.expiresAt
	r.mu.RUnlock()

	if snapshot != nil && r.now().Before(expiresAt) {
		return snapshot
	}
	return r.refresh(ctx)
}

// refresh de-duplicates concurrent reloads. The load runs on a detached
// context so one caller's cancellation does not fail the others.
func (r *ConditionRegistry) refresh(ctx context.Context) map[string]string {
	ch := r.group.DoChan("conditions", func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), registryRefreshTimeout)
		defer cancel()
		return r.load(loadCtx), nil
	})

	select {
	case res := <-ch:
		return res.Val.(map[string]string)
	case <-ctx.Done():
		return r.stale()
	}
}

func (r *ConditionRegistry) load(ctx context.Context) map[string]string {
	var (
		conditions map[string]string
		err        error
	)
	if r.source != nil {
		conditions, err = r.source.ListConditions(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	switch {
	case err == nil && len(conditions) > 0:
		r.snapshot = copyConditions(conditions)
		r.fromSource = true
		r.expiresAt = now.Add(r.ttl)
		r.logger.Debugf("condition registry refreshed with %d conditions", len(conditions))

	case r.fromSource && r.snapshot != nil:
		// Keep serving the last successful snapshot and retry sooner
		r.expiresAt = now.Add(r.failureTTL())
		r.logger.Warnf("condition registry refresh failed, keeping last snapshot: %v", describeEmpty(err))

	default:
		r.snapshot = copyConditions(r.fallback)
		r.fromSource = false
		r.expiresAt = now.Add(r.failureTTL())
		r.logger.Warnf("condition registry using fallback set: %v", describeEmpty(err))
	}
	return r.snapshot
}

func (r *ConditionRegistry) stale() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snapshot != nil {
		return r.snapshot
	}
	return r.fallback
}

func (r *ConditionRegistry) failureTTL() time.Duration {
	if r.ttl < registryFailureTTL {
		return r.ttl
	}
	return registryFailureTTL
}

func describeEmpty(err error) interface{} {
	if err != nil {
		return err
	}
	return "knowledge base has no conditions"
}

func copyConditions(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
