// Package api assembles the HTTP router.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dvloznov/txengine/internal/api/handlers"
	"github.com/dvloznov/txengine/internal/api/middleware"
)

// NewRouter wires every endpoint onto a chi router with the standard
// middleware stack.
func NewRouter(h *handlers.Handler, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         3600,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/imports", h.ImportCSV)
			r.Post("/imports/async", h.ImportCSVAsync)

			r.Get("/transactions", h.ListTransactions)
			r.Post("/transactions/{txnID}/category", h.CorrectCategory)
			r.Post("/categorise", h.Categorise)

			r.Get("/recurring", h.ListRecurring)
			r.Get("/anomalies", h.ListAnomalies)

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/summary", h.Summary)
				r.Get("/monthly", h.MonthlyTotals)
				r.Get("/rolling-average", h.RollingAverage)
				r.Get("/trend", h.Trend)
				r.Get("/drift", h.Drift)
				r.Get("/forecast", h.Forecast)
				r.Get("/volatility", h.Volatility)
				r.Get("/profile", h.Profile)
				r.Get("/clusters", h.Clusters)
			})
		})

		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{jobID}", h.GetJob)
	})

	return r
}
