package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"device-loan-backend/internal/metrics"
	"device-loan-backend/internal/ratelimit"
	"device-loan-backend/internal/resilience"
	"device-loan-backend/internal/security"
	"device-loan-backend/internal/service"
)

// RouterConfig carries everything the HTTP surface needs. Limiter and
// Metrics are optional.
type RouterConfig struct {
	Loans    service.LoanService
	Tokens   security.TokenManager
	Breakers *resilience.Registry
	Metrics  *metrics.Collector

	Limiter      *ratelimit.Limiter
	LimitOptions ratelimit.MiddlewareOptions
	MetricsPath  string
}

func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recover, RequestID, Logging)

	router.HandleFunc("/healthz", Health(cfg.Breakers)).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	// The limiter comes first so requests that fail authentication are
	// counted too.
	api := router.PathPrefix("/api/v1").Subrouter()
	if cfg.Limiter != nil {
		opts := cfg.LimitOptions
		if opts.Identity == nil {
			opts.Identity = callerIdentity(cfg.Tokens)
		}
		if opts.OnReject == nil && cfg.Metrics != nil {
			opts.OnReject = cfg.Metrics.RecordRateLimitRejection
		}
		api.Use(ratelimit.Middleware(cfg.Limiter, opts))
	}
	api.Use(Authenticate(cfg.Tokens))

	h := NewLoanHandler(cfg.Loans)
	api.HandleFunc("/reservations/{id}/collect", h.Collect).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}/return", h.Return).Methods(http.MethodPost)
	api.HandleFunc("/loans", h.List).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/loans", h.ListForUser).Methods(http.MethodGet)

	return router
}
