// Package redis memoizes evaluated requirement sets. Evaluation is pure per
// (shipment, catalog version), so entries never need explicit invalidation:
// a catalog write changes the version and strands the old keys until TTL.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m-ovchinnikov/export-compliance/internal/core/domain"
)

type RequirementCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection. An empty URL disables
// caching; callers get (nil, nil) and fall back to direct evaluation.
func New(url string, ttl time.Duration) (*RequirementCache, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RequirementCache{client: client, ttl: ttl}, nil
}

func (c *RequirementCache) Close() error {
	return c.client.Close()
}

func cacheKey(shipmentID, catalogVersion string) string {
	return fmt.Sprintf("requirements:%s:%s", shipmentID, catalogVersion)
}

// Get returns (nil, false) for misses and for any Redis failure; the cache
// must never make evaluation fail.
func (c *RequirementCache) Get(ctx context.Context, shipmentID, catalogVersion string) (domain.RequirementSet, bool) {
	raw, err := c.client.Get(ctx, cacheKey(shipmentID, catalogVersion)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("requirement_cache_get_failed", "shipment_id", shipmentID, "error", err)
		}
		return nil, false
	}
	var keys []domain.DocumentKey
	if err := json.Unmarshal(raw, &keys); err != nil {
		slog.Warn("requirement_cache_decode_failed", "shipment_id", shipmentID, "error", err)
		return nil, false
	}
	return domain.NewRequirementSet(keys...), true
}

func (c *RequirementCache) Put(ctx context.Context, shipmentID, catalogVersion string, set domain.RequirementSet) {
	raw, err := json.Marshal(set.Keys())
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(shipmentID, catalogVersion), raw, c.ttl).Err(); err != nil {
		slog.Warn("requirement_cache_put_failed", "shipment_id", shipmentID, "error", err)
	}
}
