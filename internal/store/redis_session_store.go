package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"product-crawler/internal/models"
)

// redisClient is the subset of *redis.Client the store uses.
type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisSessionStore stores crawl sessions in Redis as JSON.
type RedisSessionStore struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore initializes a Redis-backed SessionStore.
func NewRedisSessionStore(addr, prefix string, ttl time.Duration) *RedisSessionStore {
	return newRedisSessionStore(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

func newRedisSessionStore(client redisClient, prefix string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix, ttl: ttl}
}

// Close closes the Redis client.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SetStatus writes the session record, refreshing its TTL.
func (s *RedisSessionStore) SetStatus(ctx context.Context, session models.CrawlSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.SessionID, err)
	}
	return s.client.Set(ctx, s.sessionKey(session.SessionID), payload, s.ttl).Err()
}

// GetStatus reads the session record. found is false when the key is absent or expired.
func (s *RedisSessionStore) GetStatus(ctx context.Context, sessionID string) (models.CrawlSession, bool, error) {
	val, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.CrawlSession{}, false, nil
		}
		return models.CrawlSession{}, false, err
	}

	var session models.CrawlSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return models.CrawlSession{}, false, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return session, true, nil
}

// Claim sets the session's claim key with SETNX.
func (s *RedisSessionStore) Claim(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.claimKey(sessionID), "1", ttl).Result()
}

func (s *RedisSessionStore) sessionKey(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisSessionStore) claimKey(sessionID string) string {
	return s.prefix + sessionID + ":claim"
}
