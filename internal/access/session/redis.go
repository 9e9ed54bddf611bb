package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

const keyPrefix = "session:"

// RedisStore keeps sessions in Redis, using key TTLs for expiry. Suitable
// when several instances serve the same public surface.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Issue(ctx context.Context, token string, regID id.RegistrationID, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+token, regID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Resolve(ctx context.Context, token string) (id.RegistrationID, error) {
	raw, err := s.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return id.RegistrationID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.RegistrationID{}, fmt.Errorf("resolve session: %w", err)
	}

	regID, err := id.ParseRegistrationID(raw)
	if err != nil {
		return id.RegistrationID{}, fmt.Errorf("corrupt session value: %w", err)
	}
	return regID, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
