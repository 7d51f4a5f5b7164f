// Package cache is the read cache for presentation layers. The core never
// reads through it; callers invalidate it explicitly after every mutating
// call, so a stale list survives at most one mutation or the TTL.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumamail/webhook-service/internal/domain"
)

const listKey = "cache:webhooks:list"

// defaultTTL backstops missed invalidations.
const defaultTTL = 30 * time.Second

// WebhookCache caches the webhook list in redis. All operations fail open:
// a redis error behaves like a cache miss.
type WebhookCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *WebhookCache {
	return &WebhookCache{client: client, ttl: defaultTTL, logger: logger}
}

// GetList returns the cached list and whether it was present.
func (c *WebhookCache) GetList(ctx context.Context) ([]domain.Webhook, bool) {
	data, err := c.client.Get(ctx, listKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Error("cache read failed", "error", err)
		}
		return nil, false
	}

	var webhooks []domain.Webhook
	if err := json.Unmarshal(data, &webhooks); err != nil {
		c.logger.Error("cache entry corrupt, dropping", "error", err)
		c.Invalidate(ctx)
		return nil, false
	}
	return webhooks, true
}

// SetList stores the list with the cache TTL.
func (c *WebhookCache) SetList(ctx context.Context, webhooks []domain.Webhook) {
	data, err := json.Marshal(webhooks)
	if err != nil {
		c.logger.Error("failed to marshal cache entry", "error", err)
		return
	}
	if err := c.client.Set(ctx, listKey, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache write failed", "error", err)
	}
}

// Invalidate drops the cached list. Called after every successful mutation.
func (c *WebhookCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, listKey).Err(); err != nil {
		c.logger.Error("cache invalidation failed", "error", err)
	}
}
