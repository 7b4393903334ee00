package pending

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a development-only store. State is lost on restart and
// is not shared between instances.
type memoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryItem
}

type memoryItem struct {
	c         Confirmation
	expiresAt time.Time
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	return &memoryStore{ttl: ttl, now: time.Now, items: make(map[string]memoryItem)}
}

func memoryKey(userID, id string) string { return userID + "/" + id }

func (s *memoryStore) Put(_ context.Context, c Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.items[memoryKey(c.UserID, c.ID)] = memoryItem{c: c, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *memoryStore) Take(_ context.Context, userID, id string) (Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey(userID, id)
	it, ok := s.items[k]
	if !ok {
		return Confirmation{}, ErrNotFound
	}
	delete(s.items, k)
	if s.now().After(it.expiresAt) {
		return Confirmation{}, ErrNotFound
	}
	return it.c, nil
}

func (s *memoryStore) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, memoryKey(userID, id))
	return nil
}

func (s *memoryStore) sweep() {
	now := s.now()
	for k, it := range s.items {
		if now.After(it.expiresAt) {
			delete(s.items, k)
		}
	}
}
