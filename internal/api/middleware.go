package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"armada/internal/auth"
	"armada/internal/metrics"
	"armada/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	actorKey ctxKey = iota
	tokenKey
)

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128
)

func actorFrom(ctx context.Context) (models.ActorContext, bool) {
	actor, ok := ctx.Value(actorKey).(models.ActorContext)
	return actor, ok
}

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		l := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncHTTP(route, status)

		evt := zerolog.Ctx(r.Context()).Info()
		if status >= http.StatusInternalServerError {
			evt = zerolog.Ctx(r.Context()).Warn()
		}
		evt.Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// authenticate requires a bearer token and puts its actor into the context.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.deps.Tokens.Validate(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token has expired"
			}
			writeError(w, http.StatusUnauthorized, msg)
			return
		}

		actor := claims.Actor()
		l := zerolog.Ctx(r.Context()).With().Int64("actor_id", actor.ID).Logger()
		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _ := r.Context().Value(tokenKey).(string)
		if !s.limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// throttle caps mutating calls per actor over the configured window.
func (s *HTTPServer) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := s.deps.Idempotency
		limit := s.cfg.ActionLimit
		actor, _ := actorFrom(r.Context())
		if store == nil || limit.Limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := store.CheckRateLimit(r.Context(), actor.ID, limit.Limit, limit.Window)
		if err != nil {
			// при недоступном хранилище ограничение не применяется
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("action throttle unavailable")
			allowed = true
		}
		if !allowed {
			writeError(w, http.StatusTooManyRequests, "too many actions, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// idempotent replays the first stored response for a repeated Idempotency-Key.
// Keys are scoped to the actor and the request path.
func (s *HTTPServer) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
		store := s.deps.Idempotency
		if key == "" || store == nil {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}

		ctx := r.Context()
		logger := zerolog.Ctx(ctx)
		actor, _ := actorFrom(ctx)
		storeKey := fmt.Sprintf("%d:%s:%s:%s", actor.ID, r.Method, r.URL.Path, key)

		stored, err := store.GetResponse(ctx, storeKey)
		if err != nil {
			logger.Warn().Err(err).Msg("idempotency lookup failed")
			next.ServeHTTP(w, r)
			return
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(headerReplayed, "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}

		rec := &captureWriter{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if !replayable(rec.statusCode()) {
			return
		}
		resp := &models.StoredResponse{
			StatusCode: rec.statusCode(),
			Body:       rec.body.Bytes(),
			CreatedAt:  time.Now(),
		}
		if err := store.SaveResponse(ctx, storeKey, resp, s.cfg.IdempotencyTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to store idempotent response")
		}
	})
}

// replayable reports whether a response describes a settled outcome.
// A 502 still carries a status write, so it is kept.
func replayable(code int) bool {
	if code == http.StatusTooManyRequests {
		return false
	}
	return code < http.StatusInternalServerError || code == http.StatusBadGateway
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
