package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/care-messaging/internal/middleware"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	JWTSecret         string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// RequestTimeout bounds non-streaming requests. Zero disables it.
	RequestTimeout time.Duration
	// HeartbeatInterval is the SSE keep-alive period. Zero selects the default.
	HeartbeatInterval time.Duration
}

// NewRouter wires the HTTP surface around svc.
func NewRouter(svc Messaging, cfg RouterConfig, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(svc)
	conversationHandler := NewConversationHandler(svc)
	messageHandler := NewMessageHandler(svc)
	profileHandler := NewProfileHandler(svc)
	streamHandler := NewStreamHandler(svc, cfg.HeartbeatInterval)
	wsHandler := NewWebSocketHandler(svc)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Request/response routes
		r.Group(func(r chi.Router) {
			if cfg.RequestTimeout > 0 {
				r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
			}

			r.Put("/profile", profileHandler.Sync)

			// Conversations
			r.Post("/conversations", conversationHandler.Create)
			r.Get("/conversations", conversationHandler.List)
			r.Post("/conversations/{id}/read", conversationHandler.MarkRead)

			// Messages
			r.Get("/conversations/{id}/messages", messageHandler.List)
			r.Post("/conversations/{id}/messages", messageHandler.Send)
			r.Delete("/conversations/{id}/messages/{messageID}", messageHandler.Delete)
		})

		// Live delivery
		r.Get("/conversations/{id}/stream", streamHandler.Stream)
		r.Get("/conversations/{id}/ws", wsHandler.Connect)
	})

	return r
}
