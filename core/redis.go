package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionKeyPrefix namespaces session entries in Redis.
const SessionKeyPrefix = "session:"

// RedisClientRaw is the subset of go-redis used by the session store.
type RedisClientRaw interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
// A failed ping is logged, not returned: the client redials on every command,
// and session calls report ErrStoreUnavailable until Redis answers.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis not reachable, serving with session store unavailable: %v", err)
	}

	return client, nil
}

// RedisSessionStore implements SessionStore with one key per session and a Redis TTL.
// Sessions survive API restarts and are shared between processes.
type RedisSessionStore struct {
	client RedisClientRaw
}

func NewRedisSessionStore(client RedisClientRaw) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (string, error) {
	v, err := s.client.Get(ctx, SessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionInvalid
		}
		return "", fmt.Errorf("%w: redis get: %v", ErrStoreUnavailable, err)
	}
	return v, nil
}

func (s *RedisSessionStore) Set(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, SessionKeyPrefix+token, userID, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, SessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", ErrStoreUnavailable, err)
	}
	return nil
}
