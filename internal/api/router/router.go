// Package router provides HTTP routing configuration using Chi.
package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remiblancher/pqhybrid/internal/api/handler"
	"github.com/remiblancher/pqhybrid/internal/api/middleware"
	"github.com/remiblancher/pqhybrid/internal/api/service"
	"github.com/remiblancher/pqhybrid/internal/metrics"
)

// Config holds router configuration.
type Config struct {
	Version string
	Keys    *service.KeyService
	Logger  *slog.Logger
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.CORS)
	r.Use(metrics.HTTPMiddleware)

	healthHandler := handler.NewHealthHandler(cfg.Version, cfg.Keys)
	keyHandler := handler.NewKeyHandler(cfg.Keys)
	coseHandler := handler.NewCOSEHandler(cfg.Keys)

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/algorithms", healthHandler.Algorithms)

		r.Route("/keys", func(r chi.Router) {
			r.Post("/", keyHandler.Generate)
			r.Get("/", keyHandler.List)
			r.Post("/import", keyHandler.Import)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", keyHandler.Get)
				r.Delete("/", keyHandler.Delete)
				r.Post("/sign", keyHandler.Sign)
				r.Post("/verify", keyHandler.Verify)
				r.Post("/encapsulate", keyHandler.Encapsulate)
				r.Post("/decapsulate", keyHandler.Decapsulate)
				r.Post("/cose/sign", coseHandler.Sign)
				r.Post("/cose/verify", coseHandler.Verify)
			})
		})
	})

	return r
}
