// Package engine orchestrates the watched-progress operations: it runs the
// ordering policy in front of the sync gateway, keeps backfill prompts in
// the pending store and projects progress and calendar views.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/analytics"
	"github.com/example/tracksm/services/tracker/internal/catalog"
	"github.com/example/tracksm/services/tracker/internal/ordering"
	"github.com/example/tracksm/services/tracker/internal/pending"
	"github.com/example/tracksm/services/tracker/internal/syncgw"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

// Catalog is the subset of the catalog collaborator the engine reads.
type Catalog interface {
	SeriesSummaries(ctx context.Context, ids []int64) ([]catalog.SeriesSummary, error)
	MovieSummaries(ctx context.Context, ids []int64) ([]catalog.MovieSummary, error)
	Episodes(ctx context.Context, seriesID int64) ([]catalog.Episode, error)
}

type Options struct {
	Gateway  *syncgw.Gateway
	Catalog  Catalog
	Pending  pending.Store
	Gate     *ordering.Gate
	Events   *analytics.Publisher
	Location *time.Location
	Now      func() time.Time
	Log      *zap.Logger
}

type Engine struct {
	gw      *syncgw.Gateway
	catalog Catalog
	pending pending.Store
	gate    *ordering.Gate
	events  *analytics.Publisher
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

func New(o Options) *Engine {
	e := &Engine{
		gw:      o.Gateway,
		catalog: o.Catalog,
		pending: o.Pending,
		gate:    o.Gate,
		events:  o.Events,
		loc:     o.Location,
		now:     o.Now,
		log:     o.Log,
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.gate == nil {
		e.gate = ordering.NewGate()
	}
	return e
}

// Today is the current calendar day in the configured location.
func (e *Engine) Today() time.Time { return ordering.Today(e.now(), e.loc) }

func (e *Engine) todayKey() string { return e.Today().Format("2006-01-02") }

// Status tells the caller what a mark/toggle did.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusPending   Status = "pending"
	StatusRemoved   Status = "removed"
	StatusUpToDate  Status = "up_to_date"
	StatusDismissed Status = "dismissed"
)

type PendingView struct {
	ID        string               `json:"id"`
	SeriesID  int64                `json:"seriesId"`
	Target    watched.EpisodeKey   `json:"target"`
	Missing   []watched.EpisodeKey `json:"missing"`
	WatchedAt string               `json:"watchedAt"`
}

type MarkResult struct {
	Status    Status               `json:"status"`
	SeriesID  int64                `json:"seriesId,omitempty"`
	Committed []watched.EpisodeKey `json:"committed,omitempty"`
	Failed    []watched.EpisodeKey `json:"failed,omitempty"`
	Removed   []watched.EpisodeKey `json:"removed,omitempty"`
	WatchedAt string               `json:"watchedAt,omitempty"`
	Pending   *PendingView         `json:"pending,omitempty"`
}

func committed(res syncgw.BatchResult) MarkResult {
	return MarkResult{
		Status:    StatusCommitted,
		SeriesID:  res.SeriesID,
		Committed: res.Committed,
		Failed:    res.Failed,
		WatchedAt: watched.FormatWatchedAt(res.WatchedAt),
	}
}

func (e *Engine) acquire(userID string, kind watched.MediaKind, titleID int64) (func(), error) {
	return e.gate.Acquire(ordering.GateKey(userID, kind, titleID))
}

// InFlight reports whether a mutation is running for the title.
func (e *Engine) InFlight(userID string, kind watched.MediaKind, titleID int64) bool {
	return e.gate.Busy(ordering.GateKey(userID, kind, titleID))
}

func validateEpisode(userID string, seriesID int64, ep watched.EpisodeKey) error {
	return watched.Validate(watched.EpisodeUnitKey(userID, seriesID, ep))
}

// seriesEpisodes loads the watched set and the catalog listing of a series.
// A listing failure is reported: without it the missing episodes of a
// backfill cannot be computed.
func (e *Engine) seriesEpisodes(ctx context.Context, userID string, seriesID int64) (watched.EpisodeSet, ordering.Order, error) {
	kind := watched.Series
	units, err := e.gw.FetchUnits(ctx, userID, &kind, &seriesID)
	if err != nil {
		return nil, nil, err
	}
	set := make(watched.EpisodeSet, len(units))
	for _, u := range units {
		set[u.EpisodeKey()] = u.WatchedAt
	}

	listing, err := e.catalog.Episodes(ctx, seriesID)
	if err != nil {
		return nil, nil, fmt.Errorf("episodes of %d: %w: %w", seriesID, syncgw.ErrCollaboratorUnavailable, err)
	}
	keys := make([]watched.EpisodeKey, len(listing))
	for i, ep := range listing {
		keys[i] = ep.Key()
	}
	return set, ordering.NewOrder(keys), nil
}

// MarkEpisode marks one episode watched at date (zero means today). When
// earlier episodes are unwatched nothing is committed and a pending prompt
// is returned instead.
func (e *Engine) MarkEpisode(ctx context.Context, userID string, seriesID int64, ep watched.EpisodeKey, date time.Time) (MarkResult, error) {
	if err := validateEpisode(userID, seriesID, ep); err != nil {
		return MarkResult{}, err
	}
	release, err := e.acquire(userID, watched.Series, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	defer release()

	set, order, err := e.seriesEpisodes(ctx, userID, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	return e.mark(ctx, userID, seriesID, ep, date, set, order)
}

// mark runs the backfill policy. The caller holds the series gate.
func (e *Engine) mark(ctx context.Context, userID string, seriesID int64, ep watched.EpisodeKey, date time.Time, set watched.EpisodeSet, order ordering.Order) (MarkResult, error) {
	at := ordering.ClampDate(date, e.Today())
	d := ordering.MarkWatched(order, set, ep, at)
	if d.Pending == nil {
		return e.commit(ctx, userID, seriesID, d.Commit, d.WatchedAt)
	}

	c := pending.Confirmation{
		ID:        newID(),
		UserID:    userID,
		SeriesID:  seriesID,
		Target:    d.Pending.Target,
		Missing:   d.Pending.Missing,
		WatchedAt: d.Pending.WatchedAt,
		CreatedAt: e.now().UTC(),
	}
	if err := e.pending.Put(ctx, c); err != nil {
		return MarkResult{}, fmt.Errorf("store pending confirmation: %w", err)
	}
	e.log.Debug("backfill confirmation pending",
		zap.String("user_id", userID),
		zap.Int64("series_id", seriesID),
		zap.String("target", ep.String()),
		zap.Int("missing", len(c.Missing)),
	)
	return MarkResult{Status: StatusPending, SeriesID: seriesID, Pending: viewOf(c)}, nil
}

func newID() string { return uuid.NewString() }

func viewOf(c pending.Confirmation) *PendingView {
	return &PendingView{
		ID:        c.ID,
		SeriesID:  c.SeriesID,
		Target:    c.Target,
		Missing:   c.Missing,
		WatchedAt: watched.FormatWatchedAt(c.WatchedAt),
	}
}

func (e *Engine) commit(ctx context.Context, userID string, seriesID int64, keys []watched.EpisodeKey, at time.Time) (MarkResult, error) {
	res, err := e.gw.CommitEpisodes(ctx, userID, seriesID, keys, at)
	if err != nil {
		return MarkResult{}, err
	}
	for _, k := range res.Committed {
		e.events.Publish(analytics.SubjectWatchedMarked, "watched_marked", userID, map[string]any{
			"media_type":     string(watched.Series),
			"tmdb_id":        seriesID,
			"season_number":  k.Season,
			"episode_number": k.Episode,
			"watched_at":     watched.FormatWatchedAt(res.WatchedAt),
		})
	}
	return committed(res), nil
}

// ResolvePending commits the prompt's keys for choice. Keys are stored one
// at a time; the result lists exactly those that succeeded. If none did the
// prompt is kept so the same call can be retried.
func (e *Engine) ResolvePending(ctx context.Context, userID, id string, choice ordering.Choice) (MarkResult, error) {
	choice, err := ordering.ParseChoice(string(choice))
	if err != nil {
		return MarkResult{}, err
	}
	c, err := e.pending.Take(ctx, userID, id)
	if err != nil {
		return MarkResult{}, err
	}
	release, err := e.acquire(userID, watched.Series, c.SeriesID)
	if err != nil {
		e.restore(ctx, c)
		return MarkResult{}, err
	}
	defer release()

	p := ordering.Pending{SeriesID: c.SeriesID, Target: c.Target, Missing: c.Missing, WatchedAt: c.WatchedAt}
	keys, err := p.Resolve(choice)
	if err != nil {
		return MarkResult{}, err
	}
	res, err := e.commit(ctx, userID, c.SeriesID, keys, c.WatchedAt)
	if err != nil {
		e.restore(ctx, c)
		return MarkResult{}, err
	}
	return res, nil
}

func (e *Engine) restore(ctx context.Context, c pending.Confirmation) {
	if err := e.pending.Put(context.WithoutCancel(ctx), c); err != nil {
		e.log.Warn("restore pending confirmation failed", zap.String("id", c.ID), zap.Error(err))
	}
}

// DismissPending drops the prompt without touching the watched set.
func (e *Engine) DismissPending(ctx context.Context, userID, id string) (MarkResult, error) {
	if err := e.pending.Delete(ctx, userID, id); err != nil {
		return MarkResult{}, err
	}
	return MarkResult{Status: StatusDismissed}, nil
}

// ToggleEpisode removes a watched episode or marks an unwatched one through
// the backfill policy.
func (e *Engine) ToggleEpisode(ctx context.Context, userID string, seriesID int64, ep watched.EpisodeKey, date time.Time) (MarkResult, error) {
	if err := validateEpisode(userID, seriesID, ep); err != nil {
		return MarkResult{}, err
	}
	release, err := e.acquire(userID, watched.Series, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	defer release()

	set, order, err := e.seriesEpisodes(ctx, userID, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	if !set.Has(ep) {
		return e.mark(ctx, userID, seriesID, ep, date, set, order)
	}

	if err := e.gw.Retract(ctx, watched.EpisodeUnitKey(userID, seriesID, ep)); err != nil {
		return MarkResult{}, err
	}
	e.events.Publish(analytics.SubjectWatchedRemoved, "watched_removed", userID, map[string]any{
		"media_type":     string(watched.Series),
		"tmdb_id":        seriesID,
		"season_number":  ep.Season,
		"episode_number": ep.Episode,
	})
	return MarkResult{Status: StatusRemoved, SeriesID: seriesID, Removed: []watched.EpisodeKey{ep}}, nil
}

// SetEpisodeDate re-dates a watched episode in place. An unwatched episode
// is marked through the backfill policy instead.
func (e *Engine) SetEpisodeDate(ctx context.Context, userID string, seriesID int64, ep watched.EpisodeKey, date time.Time) (MarkResult, error) {
	if err := validateEpisode(userID, seriesID, ep); err != nil {
		return MarkResult{}, err
	}
	if date.IsZero() {
		return MarkResult{}, &watched.ValidationError{Field: "watchedAt", Reason: "is required"}
	}
	release, err := e.acquire(userID, watched.Series, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	defer release()

	set, order, err := e.seriesEpisodes(ctx, userID, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	if !set.Has(ep) {
		return e.mark(ctx, userID, seriesID, ep, date, set, order)
	}
	return e.commit(ctx, userID, seriesID, []watched.EpisodeKey{ep}, date)
}

// MarkNext marks the first unwatched episode of the series as watched today.
func (e *Engine) MarkNext(ctx context.Context, userID string, seriesID int64) (MarkResult, error) {
	if seriesID <= 0 {
		return MarkResult{}, &watched.ValidationError{Field: "tmdbId", Reason: "must be positive"}
	}
	release, err := e.acquire(userID, watched.Series, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	defer release()

	set, order, err := e.seriesEpisodes(ctx, userID, seriesID)
	if err != nil {
		return MarkResult{}, err
	}
	next, ok := order.NextUnwatched(set)
	if !ok {
		return MarkResult{Status: StatusUpToDate, SeriesID: seriesID}, nil
	}
	return e.mark(ctx, userID, seriesID, next, time.Time{}, set, order)
}

// ToggleMovie flips the movie's sentinel unit. Movies skip the backfill
// policy.
func (e *Engine) ToggleMovie(ctx context.Context, userID string, movieID int64) (MarkResult, error) {
	key := watched.MovieKey(userID, movieID)
	if err := watched.Validate(key); err != nil {
		return MarkResult{}, err
	}
	release, err := e.acquire(userID, watched.Movie, movieID)
	if err != nil {
		return MarkResult{}, err
	}
	defer release()

	kind := watched.Movie
	units, err := e.gw.FetchUnits(ctx, userID, &kind, &movieID)
	if err != nil {
		return MarkResult{}, err
	}

	props := map[string]any{"media_type": string(watched.Movie), "tmdb_id": movieID}
	if len(units) > 0 {
		if err := e.gw.Retract(ctx, key); err != nil {
			return MarkResult{}, err
		}
		e.events.Publish(analytics.SubjectWatchedRemoved, "watched_removed", userID, props)
		return MarkResult{Status: StatusRemoved}, nil
	}
	stored, err := e.gw.Commit(ctx, watched.Unit{Key: key})
	if err != nil {
		return MarkResult{}, err
	}
	at := watched.FormatWatchedAt(stored.WatchedAt)
	props["watched_at"] = at
	e.events.Publish(analytics.SubjectWatchedMarked, "watched_marked", userID, props)
	return MarkResult{Status: StatusCommitted, WatchedAt: at}, nil
}

// IsInFlight reports ordering.ErrInFlight, which callers turn into a no-op.
func IsInFlight(err error) bool { return errors.Is(err, ordering.ErrInFlight) }
