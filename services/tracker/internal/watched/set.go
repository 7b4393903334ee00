package watched

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Set holds units keyed by Key. Upsert replaces, Remove of an absent key is
// a no-op. It is safe for concurrent use.
type Set struct {
	mu    sync.RWMutex
	units map[Key]Unit
}

func NewSet() *Set {
	return &Set{units: make(map[Key]Unit)}
}

func (s *Set) Upsert(u Unit) error {
	u.Key = NormalizeMovie(u.Key)
	if err := Validate(u.Key); err != nil {
		return err
	}
	s.mu.Lock()
	s.units[u.Key] = u
	s.mu.Unlock()
	return nil
}

func (s *Set) Remove(k Key) {
	s.mu.Lock()
	delete(s.units, NormalizeMovie(k))
	s.mu.Unlock()
}

func (s *Set) Get(k Key) (Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[NormalizeMovie(k)]
	return u, ok
}

// List returns the user's units matching the optional filters. Order is
// stable (kind, title, season, episode) but callers must not depend on it.
func (s *Set) List(userID string, kind *MediaKind, titleID *int64) []Unit {
	s.mu.RLock()
	out := make([]Unit, 0, len(s.units))
	for k, u := range s.units {
		if k.UserID != userID {
			continue
		}
		if kind != nil && k.Kind != *kind {
			continue
		}
		if titleID != nil && k.TitleID != *titleID {
			continue
		}
		out = append(out, u)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Unit) int { return compareKeys(a.Key, b.Key) })
	return out
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

func compareKeys(a, b Key) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.TitleID, b.TitleID); c != 0 {
		return c
	}
	return a.EpisodeKey().Compare(b.EpisodeKey())
}

// EpisodeSet is the deduplicated watched-episode set of one series with the
// latest known date per episode.
type EpisodeSet map[EpisodeKey]time.Time

// EpisodesOf collects the episode set of titleID from raw events. Duplicate
// keys collapse; the latest parseable date wins.
func EpisodesOf(events []Event, titleID int64) EpisodeSet {
	set := make(EpisodeSet)
	for _, ev := range events {
		if ev.Kind != Series || ev.TitleID != titleID || ev.Season <= 0 || ev.Episode <= 0 {
			continue
		}
		at, _ := ParseWatchedAt(ev.WatchedAt)
		k := ev.EpisodeKey()
		if prev, ok := set[k]; !ok || at.After(prev) {
			set[k] = at
		}
	}
	return set
}

func (s EpisodeSet) Has(k EpisodeKey) bool {
	_, ok := s[k]
	return ok
}

// Keys returns the set in ascending episode order.
func (s EpisodeSet) Keys() []EpisodeKey {
	out := make([]EpisodeKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.SortFunc(out, EpisodeKey.Compare)
	return out
}
