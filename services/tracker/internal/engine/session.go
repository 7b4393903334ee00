package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/tracksm/services/tracker/internal/catalog"
	"github.com/example/tracksm/services/tracker/internal/latest"
	"github.com/example/tracksm/services/tracker/internal/ordering"
	"github.com/example/tracksm/services/tracker/internal/syncgw"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

const selectedResource = "selected-series"

// Session is a single user's view for embedding callers: a local mirror of
// the watched set and a selected series whose listing is refreshed with
// supersession. A listing that arrives after a newer Select is dropped.
// Mutations share the engine's gate, so they serialize with HTTP callers.
type Session struct {
	eng    *Engine
	state  *syncgw.State
	tokens *latest.Tokens

	mu       sync.Mutex
	selected int64
	episodes []catalog.Episode
}

// NewSession loads the user's watched set.
func (e *Engine) NewSession(ctx context.Context, userID string) (*Session, error) {
	units, err := e.gw.FetchUnits(ctx, userID, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Session{eng: e, state: syncgw.NewState(userID, units), tokens: latest.New()}, nil
}

func (s *Session) UserID() string { return s.state.UserID() }

// Refresh reloads the mirror from the collaborator.
func (s *Session) Refresh(ctx context.Context) error {
	units, err := s.eng.gw.FetchUnits(ctx, s.UserID(), nil, nil)
	if err != nil {
		return err
	}
	s.state.Reset(units)
	return nil
}

// Select makes seriesID the selected series and loads its listing. applied
// is false when a later Select superseded this one; its listing is then
// discarded. A failed listing still selects the series, with no episodes,
// and returns the error.
func (s *Session) Select(ctx context.Context, seriesID int64) (applied bool, err error) {
	tok := s.tokens.Begin(selectedResource)
	listing, err := s.eng.catalog.Episodes(ctx, seriesID)
	if err != nil {
		s.eng.log.Warn("selected series listing unavailable", zap.Int64("series_id", seriesID), zap.Error(err))
		listing = nil
	}
	applied = s.tokens.Apply(tok, func() {
		s.mu.Lock()
		s.selected = seriesID
		s.episodes = slices.Clone(listing)
		s.mu.Unlock()
	})
	return applied, err
}

func (s *Session) Selected() (int64, []catalog.Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, slices.Clone(s.episodes)
}

func (s *Session) order() (int64, ordering.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]watched.EpisodeKey, len(s.episodes))
	for i, ep := range s.episodes {
		keys[i] = ep.Key()
	}
	return s.selected, ordering.NewOrder(keys)
}

// Next is the first unwatched episode of the selected series.
func (s *Session) Next() (watched.EpisodeKey, bool) {
	id, order := s.order()
	if id == 0 {
		return watched.EpisodeKey{}, false
	}
	return order.NextUnwatched(s.state.Episodes(id))
}

func (s *Session) Events() []watched.Event { return s.state.Events() }

func (s *Session) Watched(k watched.Key) bool { return s.state.Has(k) }

// Mark applies the backfill policy to an episode of the selected series.
// A decision needing a prompt is returned uncommitted; Confirm commits it.
func (s *Session) Mark(ctx context.Context, ep watched.EpisodeKey, date time.Time) (ordering.Decision, syncgw.BatchResult, error) {
	id, order := s.order()
	if err := validateEpisode(s.UserID(), id, ep); err != nil {
		return ordering.Decision{}, syncgw.BatchResult{}, err
	}
	release, err := s.eng.acquire(s.UserID(), watched.Series, id)
	if err != nil {
		return ordering.Decision{}, syncgw.BatchResult{}, err
	}
	defer release()

	d := ordering.MarkWatched(order, s.state.Episodes(id), ep, ordering.ClampDate(date, s.eng.Today()))
	if d.Pending != nil {
		d.Pending.SeriesID = id
		return d, syncgw.BatchResult{}, nil
	}
	res, err := s.eng.gw.CommitEpisodesInto(ctx, s.state, id, d.Commit, d.WatchedAt)
	return d, res, err
}

// Confirm resolves a prompt returned by Mark. The keys are committed under
// the series the prompt was raised on, even if another series has been
// selected since. Successes are folded into the mirror even when others fail.
func (s *Session) Confirm(ctx context.Context, p ordering.Pending, choice ordering.Choice) (syncgw.BatchResult, error) {
	if err := validateEpisode(s.UserID(), p.SeriesID, p.Target); err != nil {
		return syncgw.BatchResult{}, err
	}
	keys, err := p.Resolve(choice)
	if err != nil {
		return syncgw.BatchResult{}, err
	}
	release, err := s.eng.acquire(s.UserID(), watched.Series, p.SeriesID)
	if err != nil {
		return syncgw.BatchResult{}, err
	}
	defer release()
	return s.eng.gw.CommitEpisodesInto(ctx, s.state, p.SeriesID, keys, p.WatchedAt)
}

// Unmark removes an episode of the selected series after the collaborator
// confirms.
func (s *Session) Unmark(ctx context.Context, ep watched.EpisodeKey) error {
	id, _ := s.order()
	release, err := s.eng.acquire(s.UserID(), watched.Series, id)
	if err != nil {
		return err
	}
	defer release()
	return s.eng.gw.RetractFrom(ctx, s.state, watched.EpisodeUnitKey(s.UserID(), id, ep))
}

// ToggleMovie flips a movie optimistically and rolls back on failure.
func (s *Session) ToggleMovie(ctx context.Context, movieID int64) (bool, error) {
	release, err := s.eng.acquire(s.UserID(), watched.Movie, movieID)
	if err != nil {
		return s.state.Has(watched.MovieKey(s.UserID(), movieID)), err
	}
	defer release()
	return s.eng.gw.Toggle(ctx, s.state, watched.Unit{Key: watched.MovieKey(s.UserID(), movieID)})
}
