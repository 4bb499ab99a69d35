package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router. The webhook lives outside /api: the
// messaging provider signs nothing, so the endpoint relies on the pipeline
// being idempotent rather than on auth.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	if h.health != nil {
		r.Get("/health", h.health.HandleHealth)
	}

	r.Post("/webhook/inbound", h.HandleInboundEvent)

	r.Route("/api", func(r chi.Router) {
		r.Post("/snapshots", h.HandleIngestSnapshot)
		r.Get("/decisions", h.GetDecisions)
		r.Get("/dispatches/dead", h.GetDeadLetters)
	})

	return r
}
