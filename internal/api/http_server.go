package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"armada/internal/auth"
	"armada/internal/config"
	"armada/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// TokenValidator turns a bearer token into actor claims.
type TokenValidator interface {
	Validate(token string) (*auth.ActorClaims, error)
}

// Deps are the collaborators the HTTP API serves.
type Deps struct {
	Settlement  domain.SettlementService
	Ledger      domain.LedgerService
	Tokens      TokenValidator
	Idempotency domain.IdempotencyStore // nil disables replay and throttling
	Location    *time.Location          // calendar for YYYY-MM-DD dates
	Checks      map[string]HealthCheck  // reported by /healthz
}

// HTTPServer exposes the settlement admin API.
type HTTPServer struct {
	cfg     config.APIConfig
	deps    Deps
	limiter *rateLimiter
	handler http.Handler
	server  *http.Server
	logger  zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:     cfg,
		deps:    deps,
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  l,
	}
	srv.handler = srv.routes()
	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.rateLimit)

		r.Get("/bookings/{id}", s.handleGetBooking)
		r.Get("/bookings/{id}/audit", s.handleGetAudit)
		r.Get("/accounts/{id}/ledger", s.handleGetLedger)

		r.Group(func(r chi.Router) {
			r.Use(s.idempotent)
			r.Use(s.throttle)

			r.Post("/bookings/{id}/confirm", s.handleConfirm)
			r.Post("/bookings/{id}/finish", s.handleFinish)
			r.Post("/bookings/{id}/cancel", s.handleCancel)
			r.Post("/bookings/{id}/backdate", s.handleBackdate)
			r.Post("/bookings/{id}/retry", s.handleRetry)
			r.Post("/accounts/{id}/adjustments", s.handleAdjust)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the router, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.deps.Checks))
	code := http.StatusOK
	for name, check := range s.deps.Checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
