package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

func sample(id string) Confirmation {
	return Confirmation{
		ID:        id,
		UserID:    "u1",
		SeriesID:  10,
		Target:    watched.EpisodeKey{Season: 2, Episode: 3},
		Missing:   []watched.EpisodeKey{{Season: 1, Episode: 1}},
		WatchedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_TakeRemoves(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(time.Minute)
	_ = s.Put(ctx, sample("p1"))

	got, err := s.Take(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Target.Season != 2 || len(got.Missing) != 1 {
		t.Fatalf("unexpected confirmation %+v", got)
	}
	if _, err := s.Take(ctx, "u1", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second take must miss, got %v", err)
	}
}

func TestMemoryStore_ScopedByUser(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(time.Minute)
	_ = s.Put(ctx, sample("p1"))

	if _, err := s.Take(ctx, "u2", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user must not see confirmation, got %v", err)
	}
	if _, err := s.Take(ctx, "u1", "p1"); err != nil {
		t.Fatalf("owner take failed: %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	_ = s.Put(ctx, sample("p1"))

	now = now.Add(2 * time.Minute)
	if _, err := s.Take(ctx, "u1", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired confirmation must miss, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(time.Minute)
	_ = s.Put(ctx, sample("p1"))
	_ = s.Delete(ctx, "u1", "p1")
	if _, err := s.Take(ctx, "u1", "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted confirmation must miss, got %v", err)
	}
}

func TestNewStore_Selection(t *testing.T) {
	s, err := NewStore(nil, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*memoryStore); !ok {
		t.Fatalf("expected memoryStore, got %T", s)
	}

	if s, err := NewStore(nil, 0, true); err == nil || s != nil {
		t.Fatalf("expected production to refuse memory, got %T %v", s, err)
	}

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	s, err = NewStore(client, time.Minute, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := s.(*redisStore); !ok {
		t.Fatalf("expected redisStore, got %T", s)
	}
}
