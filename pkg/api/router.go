package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goclaw/sigmux/config"
	"github.com/goclaw/sigmux/pkg/api/handlers"
	"github.com/goclaw/sigmux/pkg/api/middleware"
	"github.com/goclaw/sigmux/pkg/api/response"
	"github.com/goclaw/sigmux/pkg/logger"
)

// Handlers collects the endpoint implementations the router mounts.
// Nil entries leave their routes unregistered.
type Handlers struct {
	// Health backs the liveness, readiness and status probes.
	Health *handlers.HealthHandler

	// Events streams signal occurrences over websocket.
	Events *handlers.WebSocketHandler

	// Metrics receives per-request measurements; nil disables them.
	Metrics middleware.MetricsRecorder

	// MetricsHandler serves the Prometheus exposition format.
	MetricsHandler http.Handler
}

// NewRouter assembles the middleware stack and the route table.
// Tracing runs before metrics so the recorder sees the request span
// in its context.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.Tracing(middleware.DefaultTracingOptions()),
	)
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}
	r.Use(middleware.CORS(&cfg.Server.CORS))

	RegisterRoutes(r, cfg, handlers)
	return r
}

// RegisterRoutes mounts every endpoint plus the JSON error fallbacks.
func RegisterRoutes(r chi.Router, cfg *config.Config, h *Handlers) {
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound,
			"resource not found", middleware.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, response.ErrCodeMethodNotAllowed,
			"method not allowed", middleware.GetRequestID(req.Context()))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

		if h.Health != nil {
			r.Get("/healthz", h.Health.Health)
			r.Get("/readyz", h.Health.Ready)
			r.Get("/status", h.Health.Status)
		}

		if h.MetricsHandler != nil {
			r.Method(http.MethodGet, "/metrics", h.MetricsHandler)
		}
	})

	// The event stream stays outside the timeout group: websocket
	// connections outlive any single request deadline.
	if h.Events != nil {
		r.Handle("/events", h.Events)
	}
}
