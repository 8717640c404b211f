// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/metrics"
)

// Cache is the subset of the redis client the catalog cache needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedStore keeps successful lookups in Redis for a short TTL. Catalog
// changes become visible once the TTL runs out. Redis failures never fail a
// lookup; the wrapped store answers instead. Misses and inactive results
// come from the wrapped store every time.
type CachedStore struct {
	next    Store
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCachedStore wraps next with a Redis lookup cache.
func NewCachedStore(next Store, cache Cache, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *CachedStore {
	return &CachedStore{next: next, cache: cache, ttl: ttl, metrics: m, logger: logger}
}

// FindByCode serves active entries from the cache when it can.
func (store *CachedStore) FindByCode(ctx context.Context, code string) (*Entry, error) {
	key := constants.RedisPrefixCatalog + code

	// ── 1. Cache ─────────────────────────────────────────────────────────
	raw, err := store.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry Entry
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			store.metrics.CacheLookup(metrics.CacheHit)
			return &entry, nil
		}
		store.metrics.CacheLookup(metrics.CacheError)
	case errors.Is(err, redis.Nil):
		store.metrics.CacheLookup(metrics.CacheMiss)
	default:
		store.metrics.CacheLookup(metrics.CacheError)
		store.logger.Warn("catalog_cache_get_failed", slog.String("code", code), slog.Any("error", err))
	}

	// ── 2. Source of truth ───────────────────────────────────────────────
	entry, err := store.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// ── 3. Populate ──────────────────────────────────────────────────────
	if entry.Active {
		if encoded, jsonErr := json.Marshal(entry); jsonErr == nil {
			if setErr := store.cache.Set(ctx, key, encoded, store.ttl).Err(); setErr != nil {
				store.logger.Warn("catalog_cache_set_failed", slog.String("code", code), slog.Any("error", setErr))
			}
		}
	}

	return entry, nil
}

// List always reads through; listings are for operators, not the hot path.
func (store *CachedStore) List(ctx context.Context) ([]Entry, error) {
	return store.next.List(ctx)
}
