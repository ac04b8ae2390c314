package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const sessionPrefix = "sessions:"

// SessionStore tracks live sessions. Deleting a session invalidates any
// token still carrying its id.
type SessionStore interface {
	Create(ctx context.Context, sid string, userID uuid.UUID, ttl time.Duration) error
	Exists(ctx context.Context, sid string) (bool, error)
	Delete(ctx context.Context, sid string) error
}

// RedisSessionStore keeps sessions as TTL-bound Redis keys, so expired
// sessions disappear without a cleanup job.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore constructs a SessionStore backed by client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Create(ctx context.Context, sid string, userID uuid.UUID, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(sid), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("auth.RedisSessionStore.Create: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Exists(ctx context.Context, sid string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKey(sid)).Result()
	if err != nil {
		return false, fmt.Errorf("auth.RedisSessionStore.Exists: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("auth.RedisSessionStore.Delete: %w", err)
	}
	return nil
}

func sessionKey(sid string) string {
	return sessionPrefix + sid
}
