package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/tracksm/internal/platform/tracing"
	"github.com/example/tracksm/services/tracker/internal/catalog"
	"github.com/example/tracksm/services/tracker/internal/ordering"
	"github.com/example/tracksm/services/tracker/internal/progress"
	"github.com/example/tracksm/services/tracker/internal/stats"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

// ProgressView is the reconciliation result plus the in-progress subset.
type ProgressView struct {
	progress.Result
	InProgress []progress.SeriesProgress `json:"inProgress"`
}

// summaries resolves catalog metadata for both kinds concurrently. A failed
// lookup degrades to an empty map for that kind only.
func (e *Engine) summaries(ctx context.Context, seriesIDs, movieIDs []int64) (map[int64]progress.SeriesMeta, map[int64]progress.MovieMeta) {
	series := make(map[int64]progress.SeriesMeta, len(seriesIDs))
	movies := make(map[int64]progress.MovieMeta, len(movieIDs))

	var g errgroup.Group
	if len(seriesIDs) > 0 {
		g.Go(func() error {
			res, err := e.catalog.SeriesSummaries(ctx, seriesIDs)
			if err != nil {
				e.log.Warn("series summaries unavailable", zap.Int("ids", len(seriesIDs)), zap.Error(err))
				return nil
			}
			for _, s := range res {
				series[s.ID] = progress.SeriesMeta{
					Name:                  s.Name,
					PosterURL:             s.PosterURL,
					BackdropURL:           s.BackdropURL,
					TotalEpisodes:         s.TotalEpisodes,
					AverageEpisodeRuntime: s.AverageEpisodeRuntime,
				}
			}
			return nil
		})
	}
	if len(movieIDs) > 0 {
		g.Go(func() error {
			res, err := e.catalog.MovieSummaries(ctx, movieIDs)
			if err != nil {
				e.log.Warn("movie summaries unavailable", zap.Int("ids", len(movieIDs)), zap.Error(err))
				return nil
			}
			for _, m := range res {
				movies[m.ID] = progress.MovieMeta{Title: m.Title, PosterURL: m.PosterURL, Runtime: m.Runtime}
			}
			return nil
		})
	}
	_ = g.Wait()
	return series, movies
}

// Progress reconciles the user's watched set with catalog totals. Only a
// persistence failure is returned; catalog gaps degrade per title.
func (e *Engine) Progress(ctx context.Context, userID string) (ProgressView, error) {
	ctx, span := tracing.Tracer("engine").Start(ctx, "engine.progress")
	defer span.End()

	events, err := e.gw.FetchWatched(ctx, userID, nil, nil)
	if err != nil {
		span.RecordError(err)
		return ProgressView{}, err
	}
	seriesIDs, movieIDs := progress.Partition(events)
	span.SetAttributes(
		attribute.Int("events", len(events)),
		attribute.Int("series", len(seriesIDs)),
		attribute.Int("movies", len(movieIDs)),
	)

	series, movies := e.summaries(ctx, seriesIDs, movieIDs)
	res := progress.Reconcile(events, series, movies)
	return ProgressView{Result: res, InProgress: res.InProgress()}, nil
}

type EpisodeState struct {
	catalog.Episode
	Watched   bool   `json:"watched"`
	WatchedAt string `json:"watchedAt,omitempty"`
}

type SeriesView struct {
	SeriesID            int64                `json:"seriesId"`
	Episodes            []EpisodeState       `json:"episodes"`
	WatchedEpisodeCount int                  `json:"watchedEpisodes"`
	Next                *watched.EpisodeKey  `json:"next"`
	UpToDate            bool                 `json:"upToDate"`
	InFlight            bool                 `json:"inFlight"`
	CatalogUnavailable  bool                 `json:"catalogUnavailable,omitempty"`
	Unlisted            []watched.EpisodeKey `json:"unlisted,omitempty"`
}

// SeriesState lists a series' episodes with their watched flags and the
// next episode to watch. An unavailable listing yields an empty one.
func (e *Engine) SeriesState(ctx context.Context, userID string, seriesID int64) (SeriesView, error) {
	if seriesID <= 0 {
		return SeriesView{}, &watched.ValidationError{Field: "tmdbId", Reason: "must be positive"}
	}
	kind := watched.Series
	units, err := e.gw.FetchUnits(ctx, userID, &kind, &seriesID)
	if err != nil {
		return SeriesView{}, err
	}
	set := make(watched.EpisodeSet, len(units))
	for _, u := range units {
		set[u.EpisodeKey()] = u.WatchedAt
	}

	view := SeriesView{
		SeriesID:            seriesID,
		WatchedEpisodeCount: len(set),
		InFlight:            e.InFlight(userID, watched.Series, seriesID),
	}
	listing, err := e.catalog.Episodes(ctx, seriesID)
	if err != nil {
		e.log.Warn("episode listing unavailable", zap.Int64("series_id", seriesID), zap.Error(err))
		view.CatalogUnavailable = true
		listing = nil
	}

	keys := make([]watched.EpisodeKey, 0, len(listing))
	view.Episodes = make([]EpisodeState, 0, len(listing))
	for _, ep := range listing {
		st := EpisodeState{Episode: ep}
		if at, ok := set[ep.Key()]; ok {
			st.Watched = true
			st.WatchedAt = watched.FormatWatchedAt(at)
		}
		view.Episodes = append(view.Episodes, st)
		keys = append(keys, ep.Key())
	}
	order := ordering.NewOrder(keys)
	if next, ok := order.NextUnwatched(set); ok {
		view.Next = &next
	} else {
		view.UpToDate = len(order) > 0
	}
	for _, k := range set.Keys() {
		if !order.Contains(k) {
			view.Unlisted = append(view.Unlisted, k)
		}
	}
	return view, nil
}

type ItemView struct {
	Title     string  `json:"title"`
	PosterURL *string `json:"posterUrl"`
}

type CalendarView struct {
	stats.Grid
	Items map[string]ItemView `json:"items"`
}

// Calendar builds the 42-cell month grid with heatmap intensities. Top
// items are labelled from the catalog when available.
func (e *Engine) Calendar(ctx context.Context, userID string, year int, month time.Month) (CalendarView, error) {
	if month < time.January || month > time.December || year < 1 {
		return CalendarView{}, &watched.ValidationError{Field: "month", Reason: "must be YYYY-MM"}
	}
	ctx, span := tracing.Tracer("engine").Start(ctx, "engine.calendar")
	defer span.End()

	events, err := e.gw.FetchWatched(ctx, userID, nil, nil)
	if err != nil {
		span.RecordError(err)
		return CalendarView{}, err
	}
	today := e.todayKey()
	grid := stats.MonthGrid(stats.Aggregate(events, today), year, month, today)

	var seriesIDs, movieIDs []int64
	seen := make(map[stats.Item]struct{})
	for _, c := range grid.Cells {
		for _, it := range c.Top {
			if _, ok := seen[it]; ok {
				continue
			}
			seen[it] = struct{}{}
			if it.Kind == watched.Series {
				seriesIDs = append(seriesIDs, it.TitleID)
			} else {
				movieIDs = append(movieIDs, it.TitleID)
			}
		}
	}
	series, movies := e.summaries(ctx, seriesIDs, movieIDs)

	items := make(map[string]ItemView, len(seen))
	for it := range seen {
		var v ItemView
		switch it.Kind {
		case watched.Series:
			m := series[it.TitleID]
			v = ItemView{Title: m.Name, PosterURL: m.PosterURL}
		case watched.Movie:
			m := movies[it.TitleID]
			v = ItemView{Title: m.Title, PosterURL: m.PosterURL}
		}
		items[it.String()] = v
	}
	return CalendarView{Grid: grid, Items: items}, nil
}
