package api

import (
	"net/http"
	"strconv"

	"github.com/lumamail/webhook-service/internal/store"
)

type CallHandler struct {
	calls store.CallLog
}

func NewCallHandler(calls store.CallLog) *CallHandler {
	return &CallHandler{calls: calls}
}

// List returns delivery history, newest first, optionally filtered by
// webhook_id.
func (h *CallHandler) List(w http.ResponseWriter, r *http.Request) {
	webhookID := r.URL.Query().Get("webhook_id")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			limit = n
		}
	}

	calls, err := h.calls.ListCalls(r.Context(), webhookID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list calls")
		return
	}

	respondJSON(w, http.StatusOK, calls)
}
