package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the slice of *redis.Client the store uses, so tests can
// substitute a fake.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore persists sessions as JSON values in Redis, so navigation state
// survives restarts and can be shared between replicas.
type RedisStore struct {
	rdb redisClient
}

// NewRedisStore returns a store backed by the given Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Get returns the chat's session, or a fresh one when no key exists.
func (r *RedisStore) Get(ctx context.Context, chatID int64) (*Session, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to get session %d: %w", chatID, err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %d: %w", chatID, err)
	}
	if s.State == "" {
		s.State = StateMainMenu
	}
	return &s, nil
}

// Put stores the chat's session.
func (r *RedisStore) Put(ctx context.Context, chatID int64, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session %d: %w", chatID, err)
	}
	if err := r.rdb.Set(ctx, sessionKey(chatID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save session %d: %w", chatID, err)
	}
	return nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session_%d", chatID)
}
