// Package pending keeps backfill confirmations between the prompt and the
// user's answer.
//
// Primary backend: Redis with TTL (REDIS_URL).
// Fallback: in-memory (development only).
package pending

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

var ErrNotFound = errors.New("pending confirmation not found")

// Confirmation is a suspended mark awaiting "current" or "all".
type Confirmation struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	SeriesID  int64                `json:"seriesId"`
	Target    watched.EpisodeKey   `json:"target"`
	Missing   []watched.EpisodeKey `json:"missing"`
	WatchedAt time.Time            `json:"watchedAt"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Store is scoped by user: a confirmation is only visible to its owner.
type Store interface {
	Put(ctx context.Context, c Confirmation) error
	// Take atomically reads and removes the confirmation.
	Take(ctx context.Context, userID, id string) (Confirmation, error)
	Delete(ctx context.Context, userID, id string) error
}

// NewStore returns Redis when client is non-nil, otherwise memory. Memory is
// refused when isProd is true.
func NewStore(client *redis.Client, ttl time.Duration, isProd bool) (Store, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if client != nil {
		return newRedisStore(client, ttl), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_URL for pending confirmations; in-memory store is not allowed")
	}
	return newMemoryStore(ttl), nil
}
