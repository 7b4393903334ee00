package watched

import (
	"testing"
	"time"
)

func TestSet_UpsertReplacesByKey(t *testing.T) {
	s := NewSet()
	k := EpisodeUnitKey("u1", 1, EpisodeKey{1, 1})
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 3)

	if err := s.Upsert(Unit{Key: k, WatchedAt: d1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(Unit{Key: k, WatchedAt: d2}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 unit, got %d", s.Len())
	}
	got, _ := s.Get(k)
	if !got.WatchedAt.Equal(d2) {
		t.Fatalf("expected latest date to win, got %v", got.WatchedAt)
	}
}

func TestSet_LastOperationWins(t *testing.T) {
	s := NewSet()
	k := MovieKey("u1", 9)
	_ = s.Upsert(Unit{Key: k})
	s.Remove(k)
	s.Remove(k)
	if _, ok := s.Get(k); ok {
		t.Fatal("expected removed")
	}
	_ = s.Upsert(Unit{Key: k})
	if _, ok := s.Get(k); !ok {
		t.Fatal("expected present after final upsert")
	}
}

func TestSet_RejectsInvalid(t *testing.T) {
	s := NewSet()
	if err := s.Upsert(Unit{Key: Key{UserID: "u1", Kind: Series, TitleID: 1}}); err == nil {
		t.Fatal("expected validation error")
	}
	if s.Len() != 0 {
		t.Fatal("invalid unit must not be stored")
	}
}

func TestSet_ListFilters(t *testing.T) {
	s := NewSet()
	_ = s.Upsert(Unit{Key: MovieKey("u1", 3)})
	_ = s.Upsert(Unit{Key: EpisodeUnitKey("u1", 2, EpisodeKey{1, 2})})
	_ = s.Upsert(Unit{Key: EpisodeUnitKey("u1", 2, EpisodeKey{1, 1})})
	_ = s.Upsert(Unit{Key: EpisodeUnitKey("u2", 2, EpisodeKey{1, 1})})

	if got := s.List("u1", nil, nil); len(got) != 3 {
		t.Fatalf("expected 3 units for u1, got %d", len(got))
	}
	kind := Series
	title := int64(2)
	got := s.List("u1", &kind, &title)
	if len(got) != 2 || got[0].Episode != 1 {
		t.Fatalf("unexpected filtered list %+v", got)
	}
}

func TestEpisodesOf_Dedup(t *testing.T) {
	events := []Event{
		{Kind: Series, TitleID: 1, Season: 1, Episode: 1, WatchedAt: "2024-01-01"},
		{Kind: Series, TitleID: 1, Season: 1, Episode: 1, WatchedAt: "2024-01-01"},
		{Kind: Series, TitleID: 1, Season: 1, Episode: 2, WatchedAt: "2024-01-02"},
		{Kind: Series, TitleID: 2, Season: 1, Episode: 1},
		{Kind: Movie, TitleID: 1},
	}
	set := EpisodesOf(events, 1)
	if len(set) != 2 {
		t.Fatalf("expected 2 distinct episodes, got %d", len(set))
	}
	keys := set.Keys()
	if keys[0] != (EpisodeKey{1, 1}) || keys[1] != (EpisodeKey{1, 2}) {
		t.Fatalf("unexpected keys %v", keys)
	}
	if !set.Has(EpisodeKey{1, 2}) || set.Has(EpisodeKey{2, 1}) {
		t.Fatal("unexpected membership")
	}
}
