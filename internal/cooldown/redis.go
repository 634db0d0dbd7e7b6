package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyTTL bounds how long a last-shown key lives. Cooldown windows are
// measured in days, so a month of retention comfortably covers any
// per-service setting while keeping the keyspace from growing unbounded.
const redisKeyTTL = 30 * 24 * time.Hour

// RedisStore is a Redis-backed [HistoryStore]. It keeps only the most recent
// shown-at timestamp per (user, service) pair, which is all the cooldown
// check needs.
type RedisStore struct {
	client *redis.Client
}

var _ HistoryStore = (*RedisStore)(nil)

// NewRedisStore connects to the Redis instance at addr and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis history: ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the client's connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(userID, serviceID string) string {
	return "signpost:lastshown:" + userID + ":" + serviceID
}

// InsertShown implements [HistoryStore].
func (s *RedisStore) InsertShown(ctx context.Context, userID, serviceID string, ts time.Time) error {
	err := s.client.Set(ctx, redisKey(userID, serviceID), ts.UTC().Format(time.RFC3339Nano), redisKeyTTL).Err()
	if err != nil {
		return fmt.Errorf("redis history: set: %w", err)
	}
	return nil
}

// LastShown implements [HistoryStore].
func (s *RedisStore) LastShown(ctx context.Context, userID, serviceID string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, redisKey(userID, serviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis history: get: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis history: parse timestamp: %w", err)
	}
	return ts, true, nil
}
