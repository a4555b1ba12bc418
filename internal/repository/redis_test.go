package repository

import (
	"context"
	"testing"
	"time"

	"armada/internal/config"
	"armada/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStore(client)
	ctx := context.Background()

	t.Run("SaveAndGetResponse", func(t *testing.T) {
		resp := &models.StoredResponse{StatusCode: 200, Body: []byte(`{"id":1}`), CreatedAt: time.Now().UTC()}
		require.NoError(t, store.SaveResponse(ctx, "key-1", resp, time.Hour))

		got, err := store.GetResponse(ctx, "key-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 200, got.StatusCode)
		assert.JSONEq(t, `{"id":1}`, string(got.Body))
		assert.True(t, s.Exists(idempotencyPrefix+"key-1"))
	})

	t.Run("FirstResponseWins", func(t *testing.T) {
		require.NoError(t, store.SaveResponse(ctx, "key-2", &models.StoredResponse{StatusCode: 200}, time.Hour))
		require.NoError(t, store.SaveResponse(ctx, "key-2", &models.StoredResponse{StatusCode: 409}, time.Hour))

		got, err := store.GetResponse(ctx, "key-2")
		require.NoError(t, err)
		assert.Equal(t, 200, got.StatusCode)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, store.SaveResponse(ctx, "key-3", &models.StoredResponse{StatusCode: 201}, time.Minute))
		s.FastForward(2 * time.Minute)

		got, err := store.GetResponse(ctx, "key-3")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := store.GetResponse(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		actorID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := store.CheckRateLimit(ctx, actorID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = store.CheckRateLimit(ctx, actorID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = store.CheckRateLimit(ctx, actorID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = store.CheckRateLimit(ctx, actorID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("ServerDown", func(t *testing.T) {
		down, err := miniredis.Run()
		require.NoError(t, err)
		c := redis.NewClient(&redis.Options{Addr: down.Addr(), MaxRetries: -1})
		defer c.Close()
		down.Close()

		_, err = NewRedisIdempotencyStore(c).CheckRateLimit(ctx, 1, 1, time.Second)
		assert.Error(t, err)
	})

	t.Run("NilClient", func(t *testing.T) {
		store := NewRedisIdempotencyStore(nil)
		_, err := store.GetResponse(ctx, "x")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})
}

func TestCloseNilClient(t *testing.T) {
	assert.NoError(t, Close(nil))
}
