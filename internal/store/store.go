package store

import (
	"context"
	"time"

	"github.com/lumamail/webhook-service/internal/domain"
)

// Store is the durable keyed storage contract for webhook records.
// All operations are atomic at single-record granularity. Update is a
// compare-and-swap on the record's version: concurrent writers never
// interleave partial writes, the loser gets domain.ErrConflict.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Webhook, error)
	// List returns all webhooks ordered by creation time, ascending.
	List(ctx context.Context) ([]domain.Webhook, error)
	Insert(ctx context.Context, w *domain.Webhook) error
	Update(ctx context.Context, w *domain.Webhook) error
	Delete(ctx context.Context, id string) error
}

// CallRecord holds data for inserting a call-log entry.
type CallRecord struct {
	WebhookID      string
	EventType      string
	Success        bool
	HTTPStatusCode *int
	ErrorMessage   string
	ResponseTimeMs int
	At             time.Time
}

// CallLog is the durable delivery-attempt history.
type CallLog interface {
	InsertCall(ctx context.Context, rec CallRecord) error
	// ListCalls returns history newest-first, optionally filtered by
	// webhook id.
	ListCalls(ctx context.Context, webhookID string, limit int) ([]domain.WebhookCall, error)
}
