package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumamail/webhook-service/internal/cache"
	"github.com/lumamail/webhook-service/internal/domain"
	"github.com/lumamail/webhook-service/internal/service"
)

type WebhookHandler struct {
	svc   *service.Service
	cache *cache.WebhookCache
}

func NewWebhookHandler(svc *service.Service, c *cache.WebhookCache) *WebhookHandler {
	return &WebhookHandler{svc: svc, cache: c}
}

// createWebhookResponse includes the secret, which is shown exactly once.
type createWebhookResponse struct {
	domain.Webhook
	Secret string `json:"secret"`
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if webhooks, ok := h.cache.GetList(r.Context()); ok {
			respondJSON(w, http.StatusOK, webhooks)
			return
		}
	}

	webhooks, err := h.svc.List(r.Context())
	if err != nil {
		respondDomainError(w, err, "failed to list webhooks")
		return
	}

	if h.cache != nil {
		h.cache.SetList(r.Context(), webhooks)
	}
	respondJSON(w, http.StatusOK, webhooks)
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err, "failed to get webhook")
		return
	}
	respondJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	webhook, err := h.svc.Create(r.Context(), req)
	if err != nil {
		respondDomainError(w, err, "failed to create webhook")
		return
	}

	h.invalidate(r)
	respondJSON(w, http.StatusCreated, createWebhookResponse{
		Webhook: *webhook,
		Secret:  webhook.Secret,
	})
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	webhook, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondDomainError(w, err, "failed to update webhook")
		return
	}

	h.invalidate(r)
	respondJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err, "failed to delete webhook")
		return
	}

	h.invalidate(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Test(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err, "failed to enqueue test delivery")
		return
	}

	// A test writes a call-log entry shortly after; drop the cached list so
	// clients re-read fresh health data.
	h.invalidate(r)
	respondJSON(w, http.StatusAccepted, map[string]bool{"enqueued": true})
}

func (h *WebhookHandler) invalidate(r *http.Request) {
	if h.cache != nil {
		h.cache.Invalidate(r.Context())
	}
}
