package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lumamail/webhook-service/internal/dispatcher"
	"github.com/lumamail/webhook-service/internal/domain"
)

type EventHandler struct {
	queue *dispatcher.Queue
}

func NewEventHandler(queue *dispatcher.Queue) *EventHandler {
	return &EventHandler{queue: queue}
}

type publishEventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type publishEventResponse struct {
	EventID          string `json:"event_id"`
	Type             string `json:"type"`
	DeliveriesQueued int    `json:"deliveries_queued"`
}

// Publish accepts a platform event and fans it out to subscribed ACTIVE
// webhooks.
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !domain.KnownEventType(req.Type) {
		respondError(w, http.StatusBadRequest, "unknown event type")
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		respondError(w, http.StatusBadRequest, "payload must be valid JSON")
		return
	}

	event := &domain.Event{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Payload:   req.Payload,
		CreatedAt: time.Now().UTC(),
	}

	queued, err := h.queue.FanOut(r.Context(), event)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to queue deliveries")
		return
	}

	respondJSON(w, http.StatusAccepted, publishEventResponse{
		EventID:          event.ID,
		Type:             event.Type,
		DeliveriesQueued: queued,
	})
}
