// Package service implements the webhook subscription lifecycle: list,
// create, update, delete, and manual test deliveries.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/lumamail/webhook-service/internal/domain"
	"github.com/lumamail/webhook-service/internal/store"
)

// updateRetries bounds the retry loop when an admin edit races a delivery
// outcome on the same record.
const updateRetries = 3

// Dispatcher enqueues delivery work. Test enqueues a single synthetic
// delivery and returns once the job is queued, without waiting for the
// delivery to complete.
type Dispatcher interface {
	EnqueueTest(ctx context.Context, w *domain.Webhook) error
}

type Service struct {
	store      store.Store
	dispatcher Dispatcher
	logger     *slog.Logger
}

func New(s store.Store, d Dispatcher, logger *slog.Logger) *Service {
	return &Service{store: s, dispatcher: d, logger: logger}
}

// List returns all webhooks ordered by creation time. Read-only.
func (s *Service) List(ctx context.Context) ([]domain.Webhook, error) {
	return s.store.List(ctx)
}

// Get returns a single webhook by id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Webhook, error) {
	return s.store.Get(ctx, id)
}

// Create registers a new webhook. The secret is generated when the caller
// does not supply one; it is returned on the created record and never
// displayed again.
func (s *Service) Create(ctx context.Context, req domain.CreateWebhookRequest) (*domain.Webhook, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	eventTypes, err := normalizeEventTypes(req.EventTypes)
	if err != nil {
		return nil, err
	}

	secret := req.Secret
	if secret == "" {
		secret, err = generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generating secret: %w", err)
		}
	}

	now := time.Now().UTC()
	w := &domain.Webhook{
		ID:         uuid.NewString(),
		URL:        req.URL,
		Secret:     secret,
		EventTypes: eventTypes,
		Status:     domain.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}

	if err := s.store.Insert(ctx, w); err != nil {
		return nil, err
	}

	s.logger.Info("webhook created", "webhook_id", w.ID, "url", w.URL)
	return w, nil
}

// Update applies a partial patch to url, event types, and status. Status may
// only be set to ACTIVE or PAUSED: AUTO_DISABLED is applied exclusively by
// the status tracker. Resuming an auto-disabled webhook resets its
// consecutive-failure counter; pausing touches no counters.
func (s *Service) Update(ctx context.Context, id string, patch domain.UpdateWebhookRequest) (*domain.Webhook, error) {
	if patch.URL != nil {
		if err := validateURL(*patch.URL); err != nil {
			return nil, err
		}
	}
	var eventTypes []string
	if patch.EventTypes != nil {
		var err error
		eventTypes, err = normalizeEventTypes(*patch.EventTypes)
		if err != nil {
			return nil, err
		}
	}
	if patch.Status != nil {
		switch *patch.Status {
		case domain.StatusActive, domain.StatusPaused:
		case domain.StatusAutoDisabled:
			return nil, domain.Invalid("status", "AUTO_DISABLED cannot be set directly")
		default:
			return nil, domain.Invalid("status", fmt.Sprintf("unknown status %q", *patch.Status))
		}
	}

	for i := 0; ; i++ {
		w, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if patch.URL != nil {
			w.URL = *patch.URL
		}
		if patch.EventTypes != nil {
			w.EventTypes = eventTypes
		}
		if patch.Status != nil {
			if *patch.Status == domain.StatusActive && w.Status == domain.StatusAutoDisabled {
				w.FailureCount = 0
			}
			w.Status = *patch.Status
		}
		w.UpdatedAt = time.Now().UTC()

		err = s.store.Update(ctx, w)
		if err == nil {
			s.logger.Info("webhook updated", "webhook_id", w.ID)
			return w, nil
		}
		if errors.Is(err, domain.ErrConflict) && i < updateRetries-1 {
			continue
		}
		return nil, err
	}
}

// Delete removes the webhook immediately. Not idempotent: a second delete
// of the same id fails with ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("webhook deleted", "webhook_id", id)
	return nil
}

// Test enqueues exactly one synthetic delivery attempt for the webhook,
// regardless of its status — operators can probe a paused or auto-disabled
// endpoint. Returns once the job is enqueued.
func (s *Service) Test(ctx context.Context, id string) error {
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.dispatcher.EnqueueTest(ctx, w); err != nil {
		return fmt.Errorf("enqueuing test delivery: %w", err)
	}
	s.logger.Info("test delivery enqueued", "webhook_id", id)
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return domain.Invalid("url", "url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return domain.Invalid("url", "not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Invalid("url", "scheme must be http or https")
	}
	if u.Host == "" {
		return domain.Invalid("url", "host is required")
	}
	return nil
}

// normalizeEventTypes deduplicates while preserving order and rejects
// identifiers outside the catalog. An empty list is valid and means
// "all event types".
func normalizeEventTypes(eventTypes []string) ([]string, error) {
	normalized := make([]string, 0, len(eventTypes))
	for _, et := range eventTypes {
		if !domain.KnownEventType(et) {
			return nil, domain.Invalid("event_types", fmt.Sprintf("unknown event type %q", et))
		}
		if !slices.Contains(normalized, et) {
			normalized = append(normalized, et)
		}
	}
	return normalized, nil
}

func generateSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(bytes), nil
}
