package repository

import (
	"context"
	"testing"
	"time"

	"armada/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SaveAndGet", func(t *testing.T) {
		require.NoError(t, store.SaveResponse(ctx, "a", &models.StoredResponse{StatusCode: 200, Body: []byte("ok")}, time.Hour))
		require.NoError(t, store.SaveResponse(ctx, "a", &models.StoredResponse{StatusCode: 500}, time.Hour))

		got, err := store.GetResponse(ctx, "a")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 200, got.StatusCode)
		assert.Equal(t, []byte("ok"), got.Body)
	})

	t.Run("Expired", func(t *testing.T) {
		require.NoError(t, store.SaveResponse(ctx, "b", &models.StoredResponse{StatusCode: 201}, time.Minute))
		now = now.Add(2 * time.Minute)

		got, err := store.GetResponse(ctx, "b")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		actorID := int64(456)
		allowed, _ := store.CheckRateLimit(ctx, actorID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = store.CheckRateLimit(ctx, actorID, 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = store.CheckRateLimit(ctx, actorID, 2, time.Second)
		assert.False(t, allowed)

		// другой администратор считается отдельно
		allowed, _ = store.CheckRateLimit(ctx, actorID+1, 2, time.Second)
		assert.True(t, allowed)

		now = now.Add(time.Second + time.Millisecond)
		allowed, _ = store.CheckRateLimit(ctx, actorID, 2, time.Second)
		assert.True(t, allowed)
	})
}
