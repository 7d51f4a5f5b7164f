package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a per-webhook sliding-window limiter over redis. A Lua
// script atomically evicts expired entries, checks the count, and records
// the new request, so concurrent deliverers cannot overshoot the window.
type RateLimiter struct {
	client *redis.Client
	logger *slog.Logger
	script *redis.Script
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    return 0
end
`)

func NewRateLimiter(client *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		client: client,
		logger: logger,
		script: slidingWindowScript,
	}
}

func rlKey(webhookID string) string {
	return fmt.Sprintf("rl:%s", webhookID)
}

// Allow reports whether a delivery to this webhook fits inside the
// one-second window. limit <= 0 disables limiting. Fails open when redis
// is unavailable.
func (rl *RateLimiter) Allow(ctx context.Context, webhookID string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now().UnixMilli()
	window := int64(1000)
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000)

	result, err := rl.script.Run(ctx, rl.client, []string{rlKey(webhookID)},
		now, window, limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "webhook_id", webhookID)
		return true
	}

	if result == 0 {
		rl.logger.Debug("delivery rate limited", "webhook_id", webhookID, "limit", limit)
		return false
	}
	return true
}
