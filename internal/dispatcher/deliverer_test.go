package dispatcher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lumamail/webhook-service/internal/domain"
	"github.com/lumamail/webhook-service/internal/store"
	"github.com/lumamail/webhook-service/internal/tracker"
	ws "github.com/lumamail/webhook-service/internal/websocket"
)

type deliveryFixture struct {
	deliverer *Deliverer
	queue     *Queue
	store     *store.MemoryStore
	client    *redis.Client
}

func setupDeliverer(t *testing.T) *deliveryFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := testLogger()
	s := store.NewMemory()
	q := NewQueue(client, s, logger)
	tr := tracker.New(s, 5, logger)
	limiter := NewRateLimiter(client, logger)
	hub := ws.NewHub(logger)

	return &deliveryFixture{
		deliverer: NewDeliverer(q, tr, s, limiter, hub, 0, logger),
		queue:     q,
		store:     s,
		client:    client,
	}
}

type capturedRequest struct {
	body    []byte
	headers http.Header
}

func TestDeliverer_SuccessfulDelivery(t *testing.T) {
	f := setupDeliverer(t)
	ctx := context.Background()

	var mu sync.Mutex
	var captured *capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = &capturedRequest{body: body, headers: r.Header.Clone()}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := seedWebhook(t, f.store, "wh-1", domain.StatusActive, nil)

	f.deliverer.Deliver(ctx, Job{
		EventID:     "evt-1",
		WebhookID:   w.ID,
		URL:         server.URL,
		Payload:     json.RawMessage(`{"email_id":"abc"}`),
		Secret:      w.Secret,
		EventType:   domain.EventEmailDelivered,
		Attempt:     1,
		MaxAttempts: 5,
	})

	mu.Lock()
	defer mu.Unlock()
	if captured == nil {
		t.Fatal("endpoint never received the delivery")
	}

	if got := captured.headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := captured.headers.Get("X-Webhook-Event"); got != domain.EventEmailDelivered {
		t.Errorf("X-Webhook-Event = %q", got)
	}
	if got := captured.headers.Get("X-Webhook-ID"); got != "evt-1" {
		t.Errorf("X-Webhook-ID = %q", got)
	}
	if got := captured.headers.Get("X-Webhook-Attempt"); got != "1" {
		t.Errorf("X-Webhook-Attempt = %q", got)
	}
	if got := captured.headers.Get("X-Webhook-Signature"); got != Sign(captured.body, w.Secret) {
		t.Error("signature does not verify against the raw body")
	}

	var body webhookBody
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("unparseable delivery body: %v", err)
	}
	if body.Type != domain.EventEmailDelivered {
		t.Errorf("body type = %q", body.Type)
	}
	if string(body.Data) != `{"email_id":"abc"}` {
		t.Errorf("body data = %s", body.Data)
	}

	rec, _ := f.store.Get(ctx, w.ID)
	if rec.LastSuccessAt == nil {
		t.Error("tracker never saw the success")
	}
	if rec.FailureCount != 0 {
		t.Errorf("failure count = %d after success", rec.FailureCount)
	}

	calls, _ := f.store.ListCalls(ctx, w.ID, 0)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call-log entry, got %d", len(calls))
	}
	if !calls[0].Success {
		t.Error("call logged as failure")
	}
	if calls[0].HTTPStatusCode == nil || *calls[0].HTTPStatusCode != http.StatusOK {
		t.Error("call missing status code 200")
	}

	if jobs := drainJobs(t, f.client); len(jobs) != 0 {
		t.Errorf("successful delivery left %d jobs in the queue", len(jobs))
	}
}

func TestDeliverer_FailureSchedulesRetry(t *testing.T) {
	f := setupDeliverer(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := seedWebhook(t, f.store, "wh-1", domain.StatusActive, nil)

	f.deliverer.Deliver(ctx, Job{
		EventID:     "evt-1",
		WebhookID:   w.ID,
		URL:         server.URL,
		Payload:     json.RawMessage(`{}`),
		Secret:      w.Secret,
		EventType:   domain.EventEmailBounced,
		Attempt:     1,
		MaxAttempts: 5,
	})

	rec, _ := f.store.Get(ctx, w.ID)
	if rec.FailureCount != 1 {
		t.Errorf("failure count = %d, want 1", rec.FailureCount)
	}
	if rec.LastFailureAt == nil {
		t.Error("tracker never saw the failure")
	}
	if rec.Status != domain.StatusActive {
		t.Errorf("one failure flipped status to %s", rec.Status)
	}

	calls, _ := f.store.ListCalls(ctx, w.ID, 0)
	if len(calls) != 1 || calls[0].Success {
		t.Fatalf("expected 1 failed call-log entry, got %+v", calls)
	}
	if calls[0].HTTPStatusCode == nil || *calls[0].HTTPStatusCode != http.StatusInternalServerError {
		t.Error("call missing status code 500")
	}

	jobs := drainJobs(t, f.client)
	if len(jobs) != 1 {
		t.Fatalf("expected a retry in the queue, got %d jobs", len(jobs))
	}
	if jobs[0].Attempt != 2 {
		t.Errorf("retry attempt = %d, want 2", jobs[0].Attempt)
	}

	entries, _ := f.client.ZRangeWithScores(ctx, QueueKey, 0, -1).Result()
	readyAt := time.UnixMicro(int64(entries[0].Score))
	if time.Until(readyAt) < 20*time.Second {
		t.Errorf("retry scheduled too soon: ready at %v", readyAt)
	}
}

func TestDeliverer_ExhaustedAttemptsDropJob(t *testing.T) {
	f := setupDeliverer(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	w := seedWebhook(t, f.store, "wh-1", domain.StatusActive, nil)

	f.deliverer.Deliver(ctx, Job{
		EventID:     "evt-1",
		WebhookID:   w.ID,
		URL:         server.URL,
		Payload:     json.RawMessage(`{}`),
		Secret:      w.Secret,
		EventType:   domain.EventEmailBounced,
		Attempt:     5,
		MaxAttempts: 5,
	})

	if jobs := drainJobs(t, f.client); len(jobs) != 0 {
		t.Errorf("final attempt must not be retried, found %d jobs", len(jobs))
	}

	rec, _ := f.store.Get(ctx, w.ID)
	if rec.FailureCount != 1 {
		t.Errorf("failure count = %d, want 1", rec.FailureCount)
	}
}

func TestDeliverer_TestJobIsSingleShot(t *testing.T) {
	f := setupDeliverer(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := seedWebhook(t, f.store, "wh-1", domain.StatusPaused, nil)

	f.deliverer.Deliver(ctx, Job{
		EventID:     "test-1",
		WebhookID:   w.ID,
		URL:         server.URL,
		Payload:     json.RawMessage(`{"message":"This is a test delivery"}`),
		Secret:      w.Secret,
		EventType:   TestEventType,
		Attempt:     1,
		MaxAttempts: 1,
		Test:        true,
	})

	if jobs := drainJobs(t, f.client); len(jobs) != 0 {
		t.Errorf("test delivery must never be retried, found %d jobs", len(jobs))
	}

	// The probe outcome still lands in the bookkeeping.
	rec, _ := f.store.Get(ctx, w.ID)
	if rec.FailureCount != 1 {
		t.Errorf("failure count = %d, want 1", rec.FailureCount)
	}
	if rec.Status != domain.StatusPaused {
		t.Errorf("test probe changed status to %s", rec.Status)
	}
}

func TestDeliverer_UnreachableEndpoint(t *testing.T) {
	f := setupDeliverer(t)
	ctx := context.Background()

	w := seedWebhook(t, f.store, "wh-1", domain.StatusActive, nil)

	// A closed port: connection refused, no HTTP status.
	f.deliverer.Deliver(ctx, Job{
		EventID:     "evt-1",
		WebhookID:   w.ID,
		URL:         "http://127.0.0.1:1",
		Payload:     json.RawMessage(`{}`),
		Secret:      w.Secret,
		EventType:   domain.EventEmailSent,
		Attempt:     1,
		MaxAttempts: 5,
	})

	calls, _ := f.store.ListCalls(ctx, w.ID, 0)
	if len(calls) != 1 || calls[0].Success {
		t.Fatalf("expected 1 failed call-log entry, got %+v", calls)
	}
	if calls[0].HTTPStatusCode != nil {
		t.Error("transport failure should have no status code")
	}
	if calls[0].ErrorMessage == nil || *calls[0].ErrorMessage == "" {
		t.Error("transport failure should carry an error message")
	}
}

func TestPool_ProcessesSubmittedJobs(t *testing.T) {
	f := setupDeliverer(t)
	ctx := context.Background()

	var received sync.WaitGroup
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Done()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := seedWebhook(t, f.store, "wh-1", domain.StatusActive, nil)

	pool := NewPool(4, f.deliverer, testLogger())
	pool.Start(ctx)

	const n = 8
	received.Add(n)
	for i := 0; i < n; i++ {
		pool.Submit(Job{
			EventID:     "evt-1",
			WebhookID:   w.ID,
			URL:         server.URL,
			Payload:     json.RawMessage(`{}`),
			Secret:      w.Secret,
			EventType:   domain.EventEmailSent,
			Attempt:     1,
			MaxAttempts: 1,
		})
	}
	pool.Stop()
	received.Wait()

	calls, _ := f.store.ListCalls(ctx, w.ID, 0)
	if len(calls) != n {
		t.Errorf("expected %d call-log entries, got %d", n, len(calls))
	}
}
