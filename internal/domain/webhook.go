package domain

import (
	"slices"
	"time"
)

// Status is the delivery-health state of a webhook.
type Status string

const (
	// StatusActive receives live and test traffic.
	StatusActive Status = "ACTIVE"
	// StatusPaused receives test traffic only; set by an operator.
	StatusPaused Status = "PAUSED"
	// StatusAutoDisabled receives test traffic only; applied by the status
	// tracker after sustained consecutive delivery failures. Sticky until an
	// operator resumes the webhook.
	StatusAutoDisabled Status = "AUTO_DISABLED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusAutoDisabled:
		return true
	}
	return false
}

// Webhook is a registered endpoint plus its delivery-health state.
// Secret is never serialized; creation responses expose it explicitly, once.
type Webhook struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Secret        string     `json:"-"`
	EventTypes    []string   `json:"event_types"`
	Status        Status     `json:"status"`
	FailureCount  int        `json:"failure_count"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Version is the optimistic-concurrency token bumped by the store on
	// every successful update.
	Version int64 `json:"-"`
}

// IsActive reports whether the webhook is eligible for live traffic.
func (w *Webhook) IsActive() bool {
	return w.Status == StatusActive
}

// Subscribes reports whether the webhook wants events of the given type.
// An empty event-type set means "all events".
func (w *Webhook) Subscribes(eventType string) bool {
	if len(w.EventTypes) == 0 {
		return true
	}
	return slices.Contains(w.EventTypes, eventType)
}

// Clone returns a deep copy, so callers can mutate without sharing state.
func (w *Webhook) Clone() *Webhook {
	c := *w
	c.EventTypes = slices.Clone(w.EventTypes)
	if w.LastSuccessAt != nil {
		t := *w.LastSuccessAt
		c.LastSuccessAt = &t
	}
	if w.LastFailureAt != nil {
		t := *w.LastFailureAt
		c.LastFailureAt = &t
	}
	return &c
}

// CreateWebhookRequest is the payload for registering a webhook.
// An empty EventTypes list subscribes to all event types.
type CreateWebhookRequest struct {
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types"`
	Secret     string   `json:"secret,omitempty"`
}

// UpdateWebhookRequest is a partial patch. Status may only be set to
// ACTIVE or PAUSED — AUTO_DISABLED is owned by the status tracker.
type UpdateWebhookRequest struct {
	URL        *string   `json:"url,omitempty"`
	EventTypes *[]string `json:"event_types,omitempty"`
	Status     *Status   `json:"status,omitempty"`
}
