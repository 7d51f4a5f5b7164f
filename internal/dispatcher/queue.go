// Package dispatcher owns the delivery pipeline: the redis-backed delivery
// queue, the poller and worker pool that drain it, and the HTTP deliverer
// that signs and sends payloads to subscriber endpoints.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lumamail/webhook-service/internal/domain"
	"github.com/lumamail/webhook-service/internal/store"
)

// QueueKey is the redis sorted set holding pending delivery jobs, scored by
// ready-time in microseconds.
const QueueKey = "delivery_queue"

// TestEventType is the event type carried by manually triggered test
// deliveries.
const TestEventType = "webhook.test"

// defaultMaxAttempts is how many times a live delivery is tried before the
// job is dropped. Test deliveries are single-shot.
const defaultMaxAttempts = 5

// Job is a single delivery task queued in redis.
type Job struct {
	EventID     string          `json:"event_id"`
	WebhookID   string          `json:"webhook_id"`
	URL         string          `json:"url"`
	Payload     json.RawMessage `json:"payload"`
	Secret      string          `json:"secret"`
	EventType   string          `json:"event_type"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Test        bool            `json:"test,omitempty"`
}

// Queue enqueues delivery jobs and fans events out to subscribed webhooks.
type Queue struct {
	client *redis.Client
	store  store.Store
	logger *slog.Logger
}

func NewQueue(client *redis.Client, s store.Store, logger *slog.Logger) *Queue {
	return &Queue{client: client, store: s, logger: logger}
}

// Enqueue adds a job to the delivery queue, due at readyAt.
func (q *Queue) Enqueue(ctx context.Context, job Job, readyAt time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	err = q.client.ZAdd(ctx, QueueKey, redis.Z{
		Score:  float64(readyAt.UnixMicro()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("queuing delivery job: %w", err)
	}
	return nil
}

// FanOut queues one delivery job per webhook subscribed to the event's
// type. Only ACTIVE webhooks receive live traffic — PAUSED and
// AUTO_DISABLED are skipped entirely, so no outcome is ever recorded for
// them outside of manual tests. An empty event-type set subscribes to all
// events. Returns the number of deliveries queued.
func (q *Queue) FanOut(ctx context.Context, event *domain.Event) (int, error) {
	webhooks, err := q.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing webhooks for fan-out: %w", err)
	}

	pipe := q.client.Pipeline()
	queued := 0
	now := time.Now()

	for i := range webhooks {
		w := &webhooks[i]
		if !w.IsActive() || !w.Subscribes(event.Type) {
			continue
		}

		job := Job{
			EventID:     event.ID,
			WebhookID:   w.ID,
			URL:         w.URL,
			Payload:     event.Payload,
			Secret:      w.Secret,
			EventType:   event.Type,
			Attempt:     1,
			MaxAttempts: defaultMaxAttempts,
		}
		data, err := json.Marshal(job)
		if err != nil {
			q.logger.Error("failed to marshal job", "error", err, "webhook_id", w.ID)
			continue
		}

		pipe.ZAdd(ctx, QueueKey, redis.Z{
			Score:  float64(now.UnixMicro()),
			Member: string(data),
		})
		queued++
	}

	if queued > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, fmt.Errorf("queuing deliveries: %w", err)
		}
	}

	q.logger.Info("fan-out complete",
		"event_id", event.ID,
		"event_type", event.Type,
		"deliveries_queued", queued,
	)

	return queued, nil
}

// EnqueueTest queues exactly one synthetic single-shot delivery for the
// webhook, bypassing the status gate. Fire and forget: there is no
// cancellation once enqueued.
func (q *Queue) EnqueueTest(ctx context.Context, w *domain.Webhook) error {
	payload, _ := json.Marshal(map[string]any{
		"message":    "This is a test delivery",
		"webhook_id": w.ID,
	})

	job := Job{
		EventID:     "test-" + strconv.FormatInt(time.Now().UnixNano(), 36),
		WebhookID:   w.ID,
		URL:         w.URL,
		Payload:     payload,
		Secret:      w.Secret,
		EventType:   TestEventType,
		Attempt:     1,
		MaxAttempts: 1,
		Test:        true,
	}
	return q.Enqueue(ctx, job, time.Now())
}

// Depth returns the number of jobs currently waiting in the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, QueueKey).Result()
}
