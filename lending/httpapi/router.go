package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the lending routes, the operational endpoints, and the
// logging/metrics middleware into a chi router.
func NewRouter(handler *Handler, health *HealthHandler, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(RequestLogger(logger))
	router.Use(MetricsMiddleware())

	router.Route(routeLoans, func(r chi.Router) {
		r.Post("/", handler.CreateLoan)
		r.Get("/", handler.AllLoans)
		r.Get("/active", handler.ActiveLoans)
		r.Get("/overdue", handler.OverdueLoans)
		r.Put("/{loanID}/return", handler.ReturnLoan)
	})

	router.Route(routeSanctions, func(r chi.Router) {
		r.Post("/", handler.CreateSanction)
		r.Delete("/{borrowerID}", handler.RemoveSanction)
	})

	router.Route(routeCopies, func(r chi.Router) {
		r.Post("/", handler.AddCopy)
		r.Get("/{copyID}", handler.CopyStatus)
	})

	router.Get(routeHealthLive, health.Live)
	router.Get(routeHealthReady, health.Ready)
	router.Handle(routeMetrics, promhttp.Handler())

	return router
}
