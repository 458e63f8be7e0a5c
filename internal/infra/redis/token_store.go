package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTokenTTL is slightly shorter than the one hour lifetime of platform tokens.
const DefaultTokenTTL = 55 * time.Minute

// TokenStore keeps one bearer token per credential name in Redis.
type TokenStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTokenStore creates a Redis-backed token store.
func NewTokenStore(client *Client, prefix string, ttl time.Duration) *TokenStore {
	if prefix == "" {
		prefix = "cancel-request-consumer"
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{rdb: client.rdb, prefix: prefix, ttl: ttl}
}

func (s *TokenStore) key(name string) string {
	return fmt.Sprintf("%s:token:%s", s.prefix, name)
}

// Get returns the cached token, or "" when none is held.
func (s *TokenStore) Get(ctx context.Context, name string) (string, error) {
	val, err := s.rdb.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get failed: %w", err)
	}
	return val, nil
}

// Set stores the token. An empty token removes the entry.
func (s *TokenStore) Set(ctx context.Context, name, token string) error {
	if token == "" {
		if err := s.rdb.Del(ctx, s.key(name)).Err(); err != nil {
			return fmt.Errorf("del failed: %w", err)
		}
		return nil
	}
	if err := s.rdb.Set(ctx, s.key(name), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}
