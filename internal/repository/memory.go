package repository

import (
	"context"
	"sync"
	"time"

	"armada/internal/models"
)

// MemoryIdempotencyStore is the in-process fallback used when Redis is unreachable.
// Entries are lost on restart.
type MemoryIdempotencyStore struct {
	mu         sync.Mutex
	responses  map[string]storedEntry
	rateLimits map[int64]*rateLimitEntry
	now        func() time.Time
}

type storedEntry struct {
	resp      models.StoredResponse
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		responses:  make(map[string]storedEntry),
		rateLimits: make(map[int64]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryIdempotencyStore) GetResponse(ctx context.Context, key string) (*models.StoredResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.responses[key]
	if !ok {
		return nil, nil
	}
	if r.now().After(entry.expiresAt) {
		delete(r.responses, key)
		return nil, nil
	}
	resp := entry.resp
	return &resp, nil
}

func (r *MemoryIdempotencyStore) SaveResponse(ctx context.Context, key string, resp *models.StoredResponse, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.responses[key]; ok && !now.After(existing.expiresAt) {
		return nil
	}
	r.responses[key] = storedEntry{resp: *resp, expiresAt: now.Add(ttl)}
	r.sweepLocked(now)
	return nil
}

func (r *MemoryIdempotencyStore) CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[actorID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[actorID] = entry
	} else {
		entry.count++
	}
	return entry.count <= limit, nil
}

// sweepLocked drops expired responses. Caller holds mu.
func (r *MemoryIdempotencyStore) sweepLocked(now time.Time) {
	for k, e := range r.responses {
		if now.After(e.expiresAt) {
			delete(r.responses, k)
		}
	}
}
