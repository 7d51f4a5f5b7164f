package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lumamail/webhook-service/internal/domain"
	"github.com/lumamail/webhook-service/internal/store"
	"github.com/lumamail/webhook-service/internal/tracker"
	ws "github.com/lumamail/webhook-service/internal/websocket"
)

// retryBackoff is the base delay before a failed live delivery is retried;
// doubled on every subsequent attempt.
const retryBackoff = 30 * time.Second

// webhookBody is the JSON contract delivered to subscriber endpoints.
// Subscribers verify X-Webhook-Signature (HMAC-SHA256 over the raw body
// with the webhook's secret) to authenticate the origin.
type webhookBody struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Deliverer sends signed webhook payloads to subscriber endpoints and
// reports every outcome to the status tracker and the call log.
type Deliverer struct {
	httpClient *http.Client
	queue      *Queue
	tracker    *tracker.Tracker
	calls      store.CallLog
	limiter    *RateLimiter
	hub        *ws.Hub
	// rateLimit is the per-webhook deliveries-per-second cap; 0 disables it.
	rateLimit int
	logger    *slog.Logger
}

func NewDeliverer(queue *Queue, t *tracker.Tracker, calls store.CallLog, limiter *RateLimiter, hub *ws.Hub, rateLimit int, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		queue:      queue,
		tracker:    t,
		calls:      calls,
		limiter:    limiter,
		hub:        hub,
		rateLimit:  rateLimit,
		logger:     logger,
	}
}

// Deliver POSTs the job's payload to the subscriber endpoint. Any response
// below 400 counts as success. Failed live deliveries are re-enqueued with
// exponential backoff until MaxAttempts; every attempt is reported as an
// outcome.
func (d *Deliverer) Deliver(ctx context.Context, job Job) {
	if d.limiter != nil && !d.limiter.Allow(ctx, job.WebhookID, d.rateLimit) {
		// Over the per-webhook rate: push back without counting a failure.
		if err := d.queue.Enqueue(ctx, job, time.Now().Add(time.Second)); err != nil {
			d.logger.Error("failed to requeue rate-limited job", "error", err, "webhook_id", job.WebhookID)
		}
		return
	}

	start := time.Now()

	body, err := json.Marshal(webhookBody{
		Type:      job.EventType,
		Data:      job.Payload,
		Timestamp: start.UTC(),
	})
	if err != nil {
		d.logger.Error("failed to marshal webhook body", "error", err, "webhook_id", job.WebhookID)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(body))
	if err != nil {
		d.finish(ctx, job, start, nil, fmt.Sprintf("building request: %v", err))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", Sign(body, job.Secret))
	req.Header.Set("X-Webhook-Event", job.EventType)
	req.Header.Set("X-Webhook-ID", job.EventID)
	req.Header.Set("X-Webhook-Attempt", fmt.Sprintf("%d", job.Attempt))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.finish(ctx, job, start, nil, fmt.Sprintf("request failed: %v", err))
		return
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the response body itself is
	// not part of the contract.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 400 {
		d.finish(ctx, job, start, &resp.StatusCode, fmt.Sprintf("endpoint returned %d", resp.StatusCode))
		return
	}
	d.finish(ctx, job, start, &resp.StatusCode, "")
}

// finish records the attempt in the call log, reports the outcome to the
// status tracker, publishes it to the live feed, and schedules a retry for
// failed live deliveries.
func (d *Deliverer) finish(ctx context.Context, job Job, start time.Time, statusCode *int, errMsg string) {
	elapsed := time.Since(start)
	success := errMsg == ""
	at := time.Now().UTC()

	if err := d.calls.InsertCall(ctx, store.CallRecord{
		WebhookID:      job.WebhookID,
		EventType:      job.EventType,
		Success:        success,
		HTTPStatusCode: statusCode,
		ErrorMessage:   errMsg,
		ResponseTimeMs: int(elapsed.Milliseconds()),
		At:             at,
	}); err != nil {
		d.logger.Error("failed to record call", "error", err, "webhook_id", job.WebhookID)
	}

	d.tracker.Record(ctx, domain.DeliveryOutcome{
		WebhookID:  job.WebhookID,
		EventType:  job.EventType,
		Success:    success,
		StatusCode: statusCode,
		Error:      errMsg,
		At:         at,
	})

	feedType := "call_success"
	outcome := "success"
	if !success {
		feedType = "call_failed"
		outcome = "failed"
	}
	deliveriesTotal.WithLabelValues(outcome).Inc()
	deliveryDuration.Observe(elapsed.Seconds())

	d.hub.Broadcast(ws.CallEvent{
		Type:       feedType,
		WebhookID:  job.WebhookID,
		URL:        job.URL,
		EventType:  job.EventType,
		Attempt:    job.Attempt,
		StatusCode: statusCode,
		ResponseMs: elapsed.Milliseconds(),
		Error:      errMsg,
		Timestamp:  at,
	})

	if success {
		d.logger.Info("delivery successful",
			"webhook_id", job.WebhookID,
			"event_type", job.EventType,
			"attempt", job.Attempt,
			"response_time_ms", elapsed.Milliseconds(),
		)
		return
	}

	d.logger.Warn("delivery failed",
		"webhook_id", job.WebhookID,
		"event_type", job.EventType,
		"attempt", job.Attempt,
		"error", errMsg,
	)

	if job.Attempt < job.MaxAttempts {
		retry := job
		retry.Attempt++
		delay := retryBackoff << (job.Attempt - 1)
		if err := d.queue.Enqueue(ctx, retry, time.Now().Add(delay)); err != nil {
			d.logger.Error("failed to schedule retry", "error", err, "webhook_id", job.WebhookID)
		}
	} else if !job.Test {
		d.logger.Warn("delivery attempts exhausted, dropping job",
			"webhook_id", job.WebhookID,
			"event_id", job.EventID,
			"attempts", job.Attempt,
		)
	}
}

// Sign computes the hex HMAC-SHA256 signature of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
