package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumamail/webhook-service/internal/cache"
	"github.com/lumamail/webhook-service/internal/dispatcher"
	"github.com/lumamail/webhook-service/internal/service"
	"github.com/lumamail/webhook-service/internal/store"
	ws "github.com/lumamail/webhook-service/internal/websocket"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(svc *service.Service, calls store.CallLog, queue *dispatcher.Queue, c *cache.WebhookCache, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	webhookHandler := NewWebhookHandler(svc, c)
	callHandler := NewCallHandler(calls)
	eventHandler := NewEventHandler(queue)

	if hub != nil {
		r.Get("/ws", hub.HandleWebSocket)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", webhookHandler.List)
			r.Post("/", webhookHandler.Create)
			r.Get("/{id}", webhookHandler.Get)
			r.Patch("/{id}", webhookHandler.Update)
			r.Delete("/{id}", webhookHandler.Delete)
			r.Post("/{id}/test", webhookHandler.Test)
		})

		r.Get("/calls", callHandler.List)
		r.Post("/events", eventHandler.Publish)
	})

	return r
}

// corsMiddleware allows the dashboard to call the API during development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
