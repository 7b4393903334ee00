package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tracker.db"), SQLiteOptions{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(sq.Close)
	return map[string]Store{"memory": NewMemory(), "sqlite": sq}
}

func day(d int) time.Time { return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC) }

func TestWatched_UpsertReplacesDate(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			k := watched.EpisodeUnitKey("u1", 100, watched.EpisodeKey{Season: 1, Episode: 1})
			if err := s.Upsert(ctx, watched.Unit{Key: k, WatchedAt: day(1)}); err != nil {
				t.Fatal(err)
			}
			if err := s.Upsert(ctx, watched.Unit{Key: k, WatchedAt: day(5)}); err != nil {
				t.Fatal(err)
			}
			got, err := s.List(ctx, "u1", Filter{})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 unit, got %d", len(got))
			}
			if !got[0].WatchedAt.Equal(day(5)) {
				t.Fatalf("expected latest date, got %v", got[0].WatchedAt)
			}
		})
	}
}

func TestWatched_DeleteAbsentIsNoop(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Delete(context.Background(), watched.MovieKey("u1", 5)); err != nil {
				t.Fatalf("expected no error deleting absent key, got %v", err)
			}
		})
	}
}

func TestWatched_Filters(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			units := []watched.Unit{
				{Key: watched.MovieKey("u1", 1), WatchedAt: day(1)},
				{Key: watched.EpisodeUnitKey("u1", 2, watched.EpisodeKey{Season: 1, Episode: 1}), WatchedAt: day(2)},
				{Key: watched.EpisodeUnitKey("u1", 2, watched.EpisodeKey{Season: 1, Episode: 2}), WatchedAt: day(3)},
				{Key: watched.EpisodeUnitKey("u1", 3, watched.EpisodeKey{Season: 1, Episode: 1}), WatchedAt: day(4)},
				{Key: watched.EpisodeUnitKey("u2", 2, watched.EpisodeKey{Season: 1, Episode: 1}), WatchedAt: day(4)},
			}
			for _, u := range units {
				if err := s.Upsert(ctx, u); err != nil {
					t.Fatal(err)
				}
			}

			series := watched.Series
			title := int64(2)
			ep := 2
			got, err := s.List(ctx, "u1", Filter{Kind: &series, TitleID: &title})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 units, got %d", len(got))
			}
			got, _ = s.List(ctx, "u1", Filter{Kind: &series, TitleID: &title, Episode: &ep})
			if len(got) != 1 || got[0].Episode != 2 {
				t.Fatalf("unexpected episode filter result %+v", got)
			}
			all, _ := s.List(ctx, "u1", Filter{})
			if len(all) != 4 {
				t.Fatalf("expected 4 units for u1, got %d", len(all))
			}
		})
	}
}

func TestWatched_MovieSentinelForced(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			k := watched.Key{UserID: "u1", Kind: watched.Movie, TitleID: 9, Season: 2, Episode: 3}
			if err := s.Upsert(ctx, watched.Unit{Key: k, WatchedAt: day(1)}); err != nil {
				t.Fatal(err)
			}
			got, _ := s.List(ctx, "u1", Filter{})
			if len(got) != 1 || got[0].Season != 0 || got[0].Episode != 0 {
				t.Fatalf("expected sentinel movie unit, got %+v", got)
			}
		})
	}
}

func TestWatched_RejectsInvalid(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			bad := watched.Unit{Key: watched.Key{UserID: "u1", Kind: watched.Series, TitleID: 1}, WatchedAt: day(1)}
			if err := s.Upsert(ctx, bad); !errors.Is(err, watched.ErrInvalidUnitKey) {
				t.Fatalf("expected invalid key, got %v", err)
			}
			if err := s.Upsert(ctx, watched.Unit{Key: watched.MovieKey("u1", 1)}); err == nil {
				t.Fatal("expected error for missing watchedAt")
			}
		})
	}
}

func TestSQLite_ListSkipsMalformedWatchedAt(t *testing.T) {
	ctx := context.Background()
	sq, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "tracker.db"), SQLiteOptions{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(sq.Close)

	if err := sq.Upsert(ctx, watched.Unit{Key: watched.EpisodeUnitKey("u1", 7, watched.EpisodeKey{Season: 1, Episode: 1}), WatchedAt: day(1)}); err != nil {
		t.Fatal(err)
	}
	raw := `INSERT INTO watched_items (user_id, media_type, tmdb_id, season_number, episode_number, watched_at)
	        VALUES (?, 'tv', 7, 1, ?, ?)`
	if _, err := sq.db.ExecContext(ctx, raw, "u1", 2, "yesterday-ish"); err != nil {
		t.Fatal(err)
	}
	if _, err := sq.db.ExecContext(ctx, raw, "u1", 3, "2024-01-03"); err != nil {
		t.Fatal(err)
	}

	got, err := sq.List(ctx, "u1", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 units, got %+v", got)
	}
	for _, u := range got {
		if u.Episode == 2 {
			t.Fatalf("malformed row was returned: %+v", u)
		}
		if u.Episode == 3 && !u.WatchedAt.Equal(day(3)) {
			t.Fatalf("date-only row parsed as %v", u.WatchedAt)
		}
	}
}

func TestUsers_Lifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, err := s.CreateUser(ctx, User{Name: "Ana", Email: " Ana@Example.com ", PasswordHash: "h"})
			if err != nil {
				t.Fatal(err)
			}
			if u.ID == "" || u.Email != "ana@example.com" {
				t.Fatalf("unexpected user %+v", u)
			}
			if _, err := s.CreateUser(ctx, User{Name: "Other", Email: "ana@example.com", PasswordHash: "h"}); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected conflict, got %v", err)
			}

			found, err := s.FindUserByEmail(ctx, "ANA@example.com")
			if err != nil || found.ID != u.ID {
				t.Fatalf("find by email: %+v %v", found, err)
			}

			updated, err := s.UpdateProfile(ctx, u.ID, ProfileUpdate{Name: "Ana B", Username: "ana.b", PhotoURL: "http://x/p.png"})
			if err != nil {
				t.Fatal(err)
			}
			if updated.Name != "Ana B" || updated.Username != "ana.b" || updated.PhotoURL != "http://x/p.png" {
				t.Fatalf("unexpected profile %+v", updated)
			}

			if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			if _, err := s.UpdateProfile(ctx, "missing", ProfileUpdate{Name: "x"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestOpen_Selection(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	s, err := Open(ctx, OpenConfig{}, log)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected memory store, got %T", s)
	}

	if _, err := Open(ctx, OpenConfig{Production: true}, log); err == nil {
		t.Fatal("expected memory store to be refused in production")
	}

	s, err = Open(ctx, OpenConfig{SQLitePath: filepath.Join(t.TempDir(), "x.db"), Production: true}, log)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLite); !ok {
		t.Fatalf("expected sqlite store, got %T", s)
	}
}
