// Package cache provides a Redis-backed read-through cache for evaluation
// results. The database row stays authoritative; the cache only shortens the
// dashboard read path and is invalidated whenever a vendor is re-evaluated.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/coverwatch/coverwatch/internal/models"
)

// defaultTTL bounds staleness if an invalidation is ever lost.
const defaultTTL = 15 * time.Minute

// ResultCache caches serialized evaluation results per vendor. A nil
// ResultCache, or one constructed with a nil client, is a no-op: every Get
// misses and Set/Invalidate succeed silently, so callers never branch on
// whether Redis is configured.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResultCache constructs a cache over the given Redis client.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResultCache{client: client, ttl: ttl}
}

func resultKey(vendorID uint64) string {
	return fmt.Sprintf("coverwatch:eval:%d", vendorID)
}

// Get returns the cached evaluation result for the vendor, or (nil, false)
// on a miss. Corrupt cache entries are dropped and treated as misses.
func (c *ResultCache) Get(ctx context.Context, vendorID uint64) (*models.EvaluationResult, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, errGet := c.client.Get(ctx, resultKey(vendorID)).Bytes()
	if errGet != nil {
		if !errors.Is(errGet, redis.Nil) {
			log.WithError(errGet).WithField("vendor_id", vendorID).Warn("evaluation cache read failed")
		}
		return nil, false
	}
	var result models.EvaluationResult
	if errDecode := json.Unmarshal(raw, &result); errDecode != nil {
		log.WithError(errDecode).WithField("vendor_id", vendorID).Warn("dropping corrupt evaluation cache entry")
		_ = c.client.Del(ctx, resultKey(vendorID)).Err()
		return nil, false
	}
	return &result, true
}

// Set stores the evaluation result for its vendor with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, result *models.EvaluationResult) error {
	if c == nil || c.client == nil || result == nil {
		return nil
	}
	raw, errEncode := json.Marshal(result)
	if errEncode != nil {
		return fmt.Errorf("cache: encode result: %w", errEncode)
	}
	if errSet := c.client.Set(ctx, resultKey(result.VendorID), raw, c.ttl).Err(); errSet != nil {
		return fmt.Errorf("cache: store result: %w", errSet)
	}
	return nil
}

// Invalidate drops the cached result for a vendor. Called after snapshot
// upserts and batch evaluations.
func (c *ResultCache) Invalidate(ctx context.Context, vendorID uint64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if errDel := c.client.Del(ctx, resultKey(vendorID)).Err(); errDel != nil {
		return fmt.Errorf("cache: invalidate result: %w", errDel)
	}
	return nil
}
