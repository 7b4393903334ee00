package syncgw

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// State mirrors one user's watched units. Writers replace the unit map
// wholesale, so a map returned by a reader is never mutated afterwards.
type State struct {
	mu     sync.Mutex
	userID string
	units  map[watched.Key]watched.Unit
}

func NewState(userID string, units []watched.Unit) *State {
	m := make(map[watched.Key]watched.Unit, len(units))
	for _, u := range units {
		m[u.Key] = u
	}
	return &State{userID: userID, units: m}
}

func (s *State) UserID() string { return s.userID }

// Reset replaces the whole mirror, e.g. after a fresh fetch.
func (s *State) Reset(units []watched.Unit) {
	m := make(map[watched.Key]watched.Unit, len(units))
	for _, u := range units {
		m[u.Key] = u
	}
	s.mu.Lock()
	s.units = m
	s.mu.Unlock()
}

func (s *State) Has(k watched.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.units[watched.NormalizeMovie(k)]
	return ok
}

// Events returns the mirror in wire form.
func (s *State) Events() []watched.Event {
	s.mu.Lock()
	units := s.units
	s.mu.Unlock()
	out := make([]watched.Event, 0, len(units))
	for _, u := range units {
		out = append(out, watched.EventOf(u))
	}
	return out
}

// Episodes returns the watched episode set of one series.
func (s *State) Episodes(seriesID int64) watched.EpisodeSet {
	s.mu.Lock()
	units := s.units
	s.mu.Unlock()
	set := make(watched.EpisodeSet)
	for k, u := range units {
		if k.Kind == watched.Series && k.TitleID == seriesID {
			set[k.EpisodeKey()] = u.WatchedAt
		}
	}
	return set
}

func (s *State) update(fn func(m map[watched.Key]watched.Unit)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.units)
	fn(next)
	s.units = next
}

// Fold applies a batch result: exactly the committed keys are added.
func (s *State) Fold(res BatchResult) {
	if len(res.Committed) == 0 {
		return
	}
	s.update(func(m map[watched.Key]watched.Unit) {
		for _, k := range res.Committed {
			key := watched.EpisodeUnitKey(s.userID, res.SeriesID, k)
			m[key] = watched.Unit{Key: key, WatchedAt: res.WatchedAt}
		}
	})
}

func (s *State) put(u watched.Unit) {
	s.update(func(m map[watched.Key]watched.Unit) { m[u.Key] = u })
}

func (s *State) drop(k watched.Key) {
	s.update(func(m map[watched.Key]watched.Unit) { delete(m, k) })
}

// CommitInto commits u and mirrors it only after the collaborator confirms.
func (g *Gateway) CommitInto(ctx context.Context, s *State, u watched.Unit) (watched.Unit, error) {
	stored, err := g.Commit(ctx, u)
	if err != nil {
		return watched.Unit{}, err
	}
	s.put(stored)
	return stored, nil
}

// RetractFrom deletes k and drops it from s once the collaborator confirms.
func (g *Gateway) RetractFrom(ctx context.Context, s *State, k watched.Key) error {
	if err := g.Retract(ctx, k); err != nil {
		return err
	}
	s.drop(watched.NormalizeMovie(k))
	return nil
}

// CommitEpisodesInto runs CommitEpisodes and folds the successes into s.
func (g *Gateway) CommitEpisodesInto(ctx context.Context, s *State, seriesID int64, keys []watched.EpisodeKey, at time.Time) (BatchResult, error) {
	res, err := g.CommitEpisodes(ctx, s.userID, seriesID, keys, at)
	s.Fold(res)
	return res, err
}

// Toggle flips a single unit optimistically: the mirror changes first and
// is rolled back if the collaborator fails. added reports whether the unit
// is watched afterwards.
func (g *Gateway) Toggle(ctx context.Context, s *State, u watched.Unit) (added bool, err error) {
	u, err = g.Prepare(u)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	prev, had := s.units[u.Key]
	s.mu.Unlock()

	if had {
		s.drop(u.Key)
		if err := g.repo.Delete(ctx, u.Key); err != nil {
			s.put(prev)
			return true, unavailable("retract", err)
		}
		return false, nil
	}

	s.put(u)
	if err := g.repo.Upsert(ctx, u); err != nil {
		s.drop(u.Key)
		return false, unavailable("commit", err)
	}
	return true, nil
}
