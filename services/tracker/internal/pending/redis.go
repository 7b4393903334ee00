package pending

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(client *redis.Client, ttl time.Duration) *redisStore {
	return &redisStore{client: client, ttl: ttl}
}

func redisKey(userID, id string) string { return "tracker:pending:" + userID + ":" + id }

func (s *redisStore) Put(ctx context.Context, c Confirmation) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(c.UserID, c.ID), b, s.ttl).Err()
}

func (s *redisStore) Take(ctx context.Context, userID, id string) (Confirmation, error) {
	b, err := s.client.GetDel(ctx, redisKey(userID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Confirmation{}, ErrNotFound
		}
		return Confirmation{}, err
	}
	var c Confirmation
	if err := json.Unmarshal(b, &c); err != nil {
		return Confirmation{}, err
	}
	return c, nil
}

func (s *redisStore) Delete(ctx context.Context, userID, id string) error {
	return s.client.Del(ctx, redisKey(userID, id)).Err()
}
