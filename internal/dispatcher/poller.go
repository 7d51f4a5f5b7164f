package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Poller drains due jobs from the redis delivery queue into the worker
// pool. Multiple poller instances may run against the same queue: a job is
// claimed by removing it from the sorted set, and lost claims are skipped.
type Poller struct {
	client       *redis.Client
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
}

func NewPoller(client *redis.Client, pool *Pool, logger *slog.Logger) *Poller {
	return &Poller{
		client:       client,
		pool:         pool,
		logger:       logger,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
	}
}

// Start runs the polling loop until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("delivery poller started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("delivery poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	now := float64(time.Now().UnixMicro())

	results, err := p.client.ZRangeByScoreWithScores(ctx, QueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(now, 'f', -1, 64),
		Count: p.batchSize,
	}).Result()
	if err != nil {
		p.logger.Error("failed to poll delivery queue", "error", err)
		return
	}

	if depth, err := p.client.ZCard(ctx, QueueKey).Result(); err == nil {
		queueDepth.Set(float64(depth))
	}

	for _, z := range results {
		member := z.Member.(string)

		removed, err := p.client.ZRem(ctx, QueueKey, member).Result()
		if err != nil {
			p.logger.Error("failed to claim job", "error", err)
			continue
		}
		if removed == 0 {
			// Another poller instance claimed it first.
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			p.logger.Error("failed to unmarshal job", "error", err)
			continue
		}

		p.pool.Submit(job)
	}
}
