package handler

import (
	"net/http"

	"github.com/Dan9191/mortgage-service/internal/config"
	"github.com/Dan9191/mortgage-service/internal/metrics"
	"github.com/Dan9191/mortgage-service/internal/middleware"
	"github.com/gorilla/mux"
)

// NewRouter wires every route of the service
func NewRouter(h *Handler, cfg *config.Config, limiter *middleware.RateLimiter) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Logging(h.log), metrics.InstrumentHandler)

	// Public routes
	r.Handle("/register", limiter.Handler(http.HandlerFunc(h.Register))).Methods(http.MethodPost)
	r.Handle("/login", limiter.Handler(http.HandlerFunc(h.Login))).Methods(http.MethodPost)
	r.HandleFunc("/key-rate", h.KeyRate).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg), limiter.Handler)
	api.HandleFunc("/loans", h.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id:[0-9]+}", h.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id:[0-9]+}/dashboard", h.LoanDashboard).Methods(http.MethodGet)

	return r
}
