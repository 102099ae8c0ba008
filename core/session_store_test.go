package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemorySessionStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "tok", "user-1", time.Minute))
	id, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	_, err = s.Get(ctx, "other")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	require.NoError(t, s.Delete(ctx, "tok"))
	require.NoError(t, s.Delete(ctx, "tok"), "delete is idempotent")
	_, err = s.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemorySessionStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "a", "u1", time.Minute))
	require.NoError(t, s.Set(ctx, "b", "u2", time.Hour))

	now = now.Add(2 * time.Minute)
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionInvalid)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func newMiniredisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client), mr
}

func TestRedisSessionStore(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)

	require.NoError(t, s.Set(ctx, "tok", "user-1", time.Minute))
	assert.True(t, mr.Exists(SessionKeyPrefix+"tok"))
	assert.Equal(t, time.Minute, mr.TTL(SessionKeyPrefix+"tok"))

	id, err := s.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	require.NoError(t, s.Delete(ctx, "tok"))
	require.NoError(t, s.Delete(ctx, "tok"))
	_, err = s.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)

	require.NoError(t, s.Set(ctx, "tok", "user-1", time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRedisSessionStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := newMiniredisStore(t)
	mr.Close()

	_, err := s.Get(ctx, "tok")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrSessionInvalid)
	assert.ErrorIs(t, s.Set(ctx, "tok", "u", time.Minute), ErrStoreUnavailable)
}

func TestNewRedisClient(t *testing.T) {
	_, err := NewRedisClient("")
	assert.Error(t, err)
	_, err = NewRedisClient("http://localhost:6379")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client, err := NewRedisClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer client.Close()
	store := NewRedisSessionStore(client)
	require.NoError(t, store.Set(context.Background(), "tok", "user-1", time.Minute))
	assert.True(t, mr.Exists(SessionKeyPrefix+"tok"))
}
