package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jewgo/backend/internal/domain/entities"
	"github.com/jewgo/backend/internal/domain/providers"
	"github.com/jewgo/backend/internal/infrastructure/observability"
	"github.com/jewgo/backend/internal/query/search"
)

const facetKeyPrefix = "facets:"

// RedisFacetCache stores facet sets through a CacheProvider. Invalidation bumps
// a per-type generation counter so stale entries are never read again and
// simply expire.
type RedisFacetCache struct {
	provider providers.CacheProvider
	ttl      time.Duration
	metrics  *observability.Metrics
}

// NewRedisFacetCache creates a facet cache over provider
func NewRedisFacetCache(provider providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *RedisFacetCache {
	return &RedisFacetCache{provider: provider, ttl: ttl, metrics: metrics}
}

// Get returns a cached facet set
func (c *RedisFacetCache) Get(ctx context.Context, entityType entities.EntityType, filterHash uint64) (search.FacetSet, bool) {
	key, err := c.key(ctx, entityType, filterHash)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("facet cache generation unavailable")
		return nil, false
	}
	data, err := c.provider.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("facet cache read failed")
		}
		observability.RecordCacheMiss(ctx, c.metrics, string(entityType))
		return nil, false
	}

	var set search.FacetSet
	if err := json.Unmarshal(data, &set); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("discarding corrupt facet cache entry")
		observability.RecordCacheMiss(ctx, c.metrics, string(entityType))
		return nil, false
	}
	observability.RecordCacheHit(ctx, c.metrics, string(entityType))
	return set, true
}

// Set stores a facet set. Failures are logged; the cache is best effort.
func (c *RedisFacetCache) Set(ctx context.Context, entityType entities.EntityType, filterHash uint64, set search.FacetSet) {
	key, err := c.key(ctx, entityType, filterHash)
	if err != nil {
		return
	}
	data, err := json.Marshal(set)
	if err != nil {
		return
	}
	if err := c.provider.Set(ctx, key, data, c.ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("facet cache write failed")
	}
}

// Invalidate retires every cached set of entityType
func (c *RedisFacetCache) Invalidate(ctx context.Context, entityType entities.EntityType) error {
	if _, err := c.provider.Incr(ctx, generationKey(entityType)); err != nil {
		return fmt.Errorf("invalidate %s facets: %w", entityType, err)
	}
	return nil
}

func (c *RedisFacetCache) key(ctx context.Context, entityType entities.EntityType, filterHash uint64) (string, error) {
	gen := int64(0)
	data, err := c.provider.Get(ctx, generationKey(entityType))
	switch {
	case err == nil:
		gen, err = strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return "", fmt.Errorf("parse facet generation: %w", err)
		}
	case !errors.Is(err, providers.ErrCacheMiss):
		return "", err
	}
	return fmt.Sprintf("%s%s:g%d:%016x", facetKeyPrefix, entityType, gen, filterHash), nil
}

func generationKey(entityType entities.EntityType) string {
	return facetKeyPrefix + string(entityType) + ":gen"
}

// LRUFacetCache is an in-process facet cache with per-entry expiry
type LRUFacetCache struct {
	lru     *expirable.LRU[string, search.FacetSet]
	metrics *observability.Metrics
}

// NewLRUFacetCache creates an in-process cache holding at most size sets
func NewLRUFacetCache(size int, ttl time.Duration, metrics *observability.Metrics) *LRUFacetCache {
	return &LRUFacetCache{
		lru:     expirable.NewLRU[string, search.FacetSet](size, nil, ttl),
		metrics: metrics,
	}
}

// Get returns a cached facet set
func (c *LRUFacetCache) Get(ctx context.Context, entityType entities.EntityType, filterHash uint64) (search.FacetSet, bool) {
	set, ok := c.lru.Get(lruKey(entityType, filterHash))
	if ok {
		observability.RecordCacheHit(ctx, c.metrics, string(entityType))
	} else {
		observability.RecordCacheMiss(ctx, c.metrics, string(entityType))
	}
	return set, ok
}

// Set stores a facet set
func (c *LRUFacetCache) Set(_ context.Context, entityType entities.EntityType, filterHash uint64, set search.FacetSet) {
	c.lru.Add(lruKey(entityType, filterHash), set)
}

// Invalidate drops every cached set of entityType
func (c *LRUFacetCache) Invalidate(_ context.Context, entityType entities.EntityType) error {
	prefix := string(entityType) + ":"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
	return nil
}

func lruKey(entityType entities.EntityType, filterHash uint64) string {
	return fmt.Sprintf("%s:%016x", entityType, filterHash)
}
