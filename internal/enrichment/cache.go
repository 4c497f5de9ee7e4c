package enrichment

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"parcel-sorter/internal/common/logging"
)

const cacheKeyPrefix = "enrichment:cache:"

// Enricher is the lookup contract the cache decorates. Satisfied by
// HTTPClient and by the orchestrator's hook.
type Enricher interface {
	Enrich(ctx context.Context, barcode string) (string, error)
}

// CachedEnricher wraps an Enricher with a Redis response cache keyed by
// barcode. Cache failures degrade to the inner lookup; they never fail the
// enrichment.
type CachedEnricher struct {
	inner  Enricher
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

// NewCachedEnricher decorates inner with a Redis cache. A non-positive ttl
// defaults to ten minutes.
func NewCachedEnricher(inner Enricher, client *redis.Client, ttl time.Duration) *CachedEnricher {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedEnricher{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logging.WithFields(logging.String("component", "enrichment-cache")),
	}
}

// Enrich serves the cached payload when present, otherwise performs the
// lookup and caches its result.
func (c *CachedEnricher) Enrich(ctx context.Context, barcode string) (string, error) {
	key := cacheKeyPrefix + barcode

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		c.logger.Debug("enrichment cache hit", logging.String("barcode", barcode))
		return cached, nil
	}
	if err != redis.Nil {
		c.logger.Warn("enrichment cache read failed",
			logging.String("barcode", barcode),
			logging.Err(err),
		)
	}

	response, err := c.inner.Enrich(ctx, barcode)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, response, c.ttl).Err(); err != nil {
		c.logger.Warn("enrichment cache write failed",
			logging.String("barcode", barcode),
			logging.Err(err),
		)
	}
	return response, nil
}
