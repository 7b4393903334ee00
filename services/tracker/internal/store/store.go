// Package store persists watched units and user accounts.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)

// Filter narrows List. Nil fields match everything.
type Filter struct {
	Kind    *watched.MediaKind
	TitleID *int64
	Season  *int
	Episode *int
}

func (f Filter) matches(k watched.Key) bool {
	if f.Kind != nil && k.Kind != *f.Kind {
		return false
	}
	if f.TitleID != nil && k.TitleID != *f.TitleID {
		return false
	}
	if f.Season != nil && k.Season != *f.Season {
		return false
	}
	if f.Episode != nil && k.Episode != *f.Episode {
		return false
	}
	return true
}

// WatchedRepository is the persistence contract for watched units.
type WatchedRepository interface {
	// List returns the user's units, newest first. Callers must not rely on order.
	List(ctx context.Context, userID string, f Filter) ([]watched.Unit, error)
	// Upsert inserts the unit or replaces watched_at of the existing key.
	Upsert(ctx context.Context, u watched.Unit) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, k watched.Key) error
}

type User struct {
	ID           string
	Name         string
	Email        string
	Username     string
	PhotoURL     string
	PasswordHash string
	CreatedAt    time.Time
}

type ProfileUpdate struct {
	Name     string
	Username string
	PhotoURL string
}

type UserRepository interface {
	// CreateUser returns ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u User) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (User, error)
}

// Store is a complete backend.
type Store interface {
	WatchedRepository
	UserRepository
	Ping(ctx context.Context) error
	Close()
}

var errMissingWatchedAt = errors.New("store: watchedAt is required")

func prepareUnit(u watched.Unit) (watched.Unit, error) {
	u.Key = watched.NormalizeMovie(u.Key)
	if err := watched.Validate(u.Key); err != nil {
		return watched.Unit{}, err
	}
	if u.WatchedAt.IsZero() {
		return watched.Unit{}, errMissingWatchedAt
	}
	u.WatchedAt = u.WatchedAt.UTC().Truncate(time.Second)
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
