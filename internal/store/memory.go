package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/lumamail/webhook-service/internal/domain"
)

// MemoryStore is an in-memory Store and CallLog with the same semantics as
// the Postgres implementation, including version compare-and-swap. Used by
// tests and for running the server without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook
	calls    []domain.WebhookCall
}

func NewMemory() *MemoryStore {
	return &MemoryStore{webhooks: make(map[string]*domain.Webhook)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return w.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhooks := make([]domain.Webhook, 0, len(s.webhooks))
	for _, w := range s.webhooks {
		webhooks = append(webhooks, *w.Clone())
	}
	sort.Slice(webhooks, func(i, j int) bool {
		if !webhooks[i].CreatedAt.Equal(webhooks[j].CreatedAt) {
			return webhooks[i].CreatedAt.Before(webhooks[j].CreatedAt)
		}
		return webhooks[i].ID < webhooks[j].ID
	})
	return webhooks, nil
}

func (s *MemoryStore) Insert(ctx context.Context, w *domain.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[w.ID]; ok {
		return domain.ErrDuplicate
	}
	s.webhooks[w.ID] = w.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, w *domain.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.webhooks[w.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != w.Version {
		return domain.ErrConflict
	}

	next := w.Clone()
	next.Version++
	s.webhooks[w.ID] = next
	w.Version = next.Version
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.webhooks, id)
	return nil
}

func (s *MemoryStore) InsertCall(ctx context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errMsg *string
	if rec.ErrorMessage != "" {
		msg := rec.ErrorMessage
		errMsg = &msg
	}
	s.calls = append(s.calls, domain.WebhookCall{
		ID:             uuid.NewString(),
		WebhookID:      rec.WebhookID,
		EventType:      rec.EventType,
		Success:        rec.Success,
		HTTPStatusCode: rec.HTTPStatusCode,
		ErrorMessage:   errMsg,
		ResponseTimeMs: rec.ResponseTimeMs,
		CreatedAt:      rec.At,
	})
	return nil
}

func (s *MemoryStore) ListCalls(ctx context.Context, webhookID string, limit int) ([]domain.WebhookCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calls := []domain.WebhookCall{}
	for i := len(s.calls) - 1; i >= 0; i-- {
		c := s.calls[i]
		if webhookID != "" && c.WebhookID != webhookID {
			continue
		}
		calls = append(calls, c)
		if limit > 0 && len(calls) >= limit {
			break
		}
	}
	return calls, nil
}
