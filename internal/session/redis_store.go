package session

import (
	"context"
	"encoding/json"
	"fmt"

	"FallWatch.iot/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
)

const DefaultKeyPrefix = "fallwatch:session:"

// RedisStore keeps sessions as JSON values whose Redis TTL matches the
// session expiry.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
	prefix string
}

func NewRedisStore(client *redis.Client, clk clock.Clock, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, clock: clk, prefix: prefix}
}

func (r *RedisStore) key(token string) string {
	return r.prefix + token
}

func (r *RedisStore) Put(ctx context.Context, s models.Session) error {
	ttl := s.ExpiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(s.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, token string) (models.Session, bool, error) {
	val, err := r.client.Get(ctx, r.key(token)).Result()
	if err == redis.Nil {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("failed to get session: %w", err)
	}

	s, err := r.decode(token, val)
	if err != nil {
		return models.Session{}, false, err
	}
	if s.Expired(r.clock.Now()) {
		r.client.Del(ctx, r.key(token))
		return models.Session{}, false, nil
	}
	return s, true, nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	now := r.clock.Now()

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		s, err := r.decode(key[len(r.prefix):], val)
		if err != nil {
			return nil, err
		}
		if s.Expired(now) {
			continue
		}
		out = append(out, s)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return out, nil
}

func (r *RedisStore) decode(token, val string) (models.Session, error) {
	var s models.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return models.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	s.Token = token
	return s, nil
}
