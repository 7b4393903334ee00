package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// Memory is an in-process backend for development and tests.
type Memory struct {
	units *watched.Set

	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		units:   watched.NewSet(),
		users:   make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) List(_ context.Context, userID string, f Filter) ([]watched.Unit, error) {
	var out []watched.Unit
	for _, u := range m.units.List(userID, f.Kind, f.TitleID) {
		if f.matches(u.Key) {
			out = append(out, u)
		}
	}
	slices.SortStableFunc(out, func(a, b watched.Unit) int { return b.WatchedAt.Compare(a.WatchedAt) })
	return out, nil
}

func (m *Memory) Upsert(_ context.Context, u watched.Unit) error {
	u, err := prepareUnit(u)
	if err != nil {
		return err
	}
	return m.units.Upsert(u)
}

func (m *Memory) Delete(_ context.Context, k watched.Key) error {
	m.units.Remove(k)
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = normalizeEmail(u.Email)
	if _, ok := m.byEmail[u.Email]; ok {
		return User{}, ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return u, nil
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *Memory) GetUserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) UpdateProfile(_ context.Context, id string, p ProfileUpdate) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Name, u.Username, u.PhotoURL = p.Name, p.Username, p.PhotoURL
	m.users[id] = u
	return u, nil
}
