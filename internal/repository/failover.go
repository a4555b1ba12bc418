package repository

import (
	"context"
	"sync"
	"time"

	"armada/internal/domain"
	"armada/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverIdempotencyStore uses the primary store until it fails, then serves
// from the fallback and probes the primary again once per recoveryInterval.
type FailoverIdempotencyStore struct {
	primary   domain.IdempotencyStore
	fallback  domain.IdempotencyStore
	logger    *zerolog.Logger
	mu        sync.Mutex
	isDown    bool
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverIdempotencyStore(primary, fallback domain.IdempotencyStore, logger *zerolog.Logger) *FailoverIdempotencyStore {
	return &FailoverIdempotencyStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverIdempotencyStore) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isDown {
		return true
	}
	// попытка восстановления раз в минуту
	if r.now().Sub(r.lastCheck) > recoveryInterval {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverIdempotencyStore) markDown(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isDown {
		r.logger.Error().Err(err).Msg("Primary idempotency store failed, falling back to memory")
	}
	r.isDown = true
	r.lastCheck = r.now()
}

func (r *FailoverIdempotencyStore) markUp() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isDown {
		r.logger.Info().Msg("Primary idempotency store recovered")
	}
	r.isDown = false
}

// IsDown reports whether calls are currently served by the fallback.
func (r *FailoverIdempotencyStore) IsDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isDown
}

func (r *FailoverIdempotencyStore) GetResponse(ctx context.Context, key string) (*models.StoredResponse, error) {
	if r.usePrimary() {
		resp, err := r.primary.GetResponse(ctx, key)
		if err == nil {
			r.markUp()
			return resp, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetResponse(ctx, key)
}

func (r *FailoverIdempotencyStore) SaveResponse(ctx context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SaveResponse(ctx, key, resp, ttl)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SaveResponse(ctx, key, resp, ttl)
}

func (r *FailoverIdempotencyStore) CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, actorID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, actorID, limit, window)
}
