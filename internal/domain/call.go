package domain

import "time"

// DeliveryOutcome is the result of one delivery attempt, as reported to the
// status tracker. Ephemeral — the durable history lives in the call log.
type DeliveryOutcome struct {
	WebhookID  string
	EventType  string
	Success    bool
	StatusCode *int
	Error      string
	At         time.Time
}

// WebhookCall is one entry in the durable delivery history.
type WebhookCall struct {
	ID             string    `json:"id"`
	WebhookID      string    `json:"webhook_id"`
	EventType      string    `json:"event_type"`
	Success        bool      `json:"success"`
	HTTPStatusCode *int      `json:"http_status_code,omitempty"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	ResponseTimeMs int       `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
