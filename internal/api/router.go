// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/pantrio/internal/config"
)

// NewRouter assembles the HTTP surface: health probes, the
// authenticated v1 API, the WebSocket endpoint, and Prometheus metrics.
func NewRouter(h *Handler, cfg config.APIConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "X-User-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := NewAuthenticator(cfg)

	// Health endpoints stay unauthenticated with a permissive limit so
	// orchestrator probes are never locked out.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, cfg.RateLimitWindow))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.Health)
		r.Get("/", h.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Use(PrometheusMetrics)
		r.Use(auth.Middleware)

		r.Post("/images", h.SubmitImage)

		r.Get("/jobs/{id}", h.GetJob)
		r.Delete("/jobs/{id}", h.CancelJob)

		r.Get("/pantry", h.ListPantry)
		r.Put("/pantry/items", h.PutPantryItem)
		r.Delete("/pantry/items/{id}", h.DeletePantryItem)
		r.Post("/pantry/confirm", h.ConfirmIngredient)

		r.Get("/matches", h.GetMatches)

		r.Get("/recipes", h.ListRecipes)
		r.Post("/recipes/import", h.ImportRecipes)

		r.Get("/ws", h.WebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
