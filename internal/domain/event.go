package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Platform event types a webhook can subscribe to.
const (
	EventEmailSent            = "email.sent"
	EventEmailDelivered       = "email.delivered"
	EventEmailDeliveryDelayed = "email.delivery_delayed"
	EventEmailBounced         = "email.bounced"
	EventEmailComplained      = "email.complained"
	EventEmailRejected        = "email.rejected"
	EventEmailOpened          = "email.opened"
	EventEmailClicked         = "email.clicked"
)

// EventTypes is the catalog of recognized event-type identifiers.
var EventTypes = []string{
	EventEmailSent,
	EventEmailDelivered,
	EventEmailDeliveryDelayed,
	EventEmailBounced,
	EventEmailComplained,
	EventEmailRejected,
	EventEmailOpened,
	EventEmailClicked,
}

// KnownEventType reports whether t is in the catalog.
func KnownEventType(t string) bool {
	return slices.Contains(EventTypes, t)
}

// Event is a platform notification fanned out to subscribed webhooks.
// Events are not durable here; the call log records what was delivered.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
