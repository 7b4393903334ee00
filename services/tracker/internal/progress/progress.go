// Package progress reconciles watched units against catalog summaries into
// per-series progress and a movie history.
package progress

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// SeriesMeta is the catalog data the reconciliation needs for one series.
type SeriesMeta struct {
	Name                  string
	PosterURL             *string
	BackdropURL           *string
	TotalEpisodes         *int
	AverageEpisodeRuntime *int
}

type MovieMeta struct {
	Title     string
	PosterURL *string
	Runtime   *int
}

type SeriesProgress struct {
	TitleID               int64   `json:"id"`
	Name                  string  `json:"name"`
	PosterURL             *string `json:"posterUrl"`
	BackdropURL           *string `json:"backdropUrl"`
	WatchedEpisodeCount   int     `json:"watchedEpisodes"`
	TotalEpisodeCount     *int    `json:"totalEpisodes"`
	RemainingEpisodeCount *int    `json:"remainingEpisodes"`
	AverageEpisodeRuntime *int    `json:"averageEpisodeRuntime"`
	// Resolved is false when the catalog had nothing for the title.
	Resolved bool `json:"resolved"`
}

// InProgress reports a series with a known, positive remaining count.
func (p SeriesProgress) InProgress() bool {
	return p.RemainingEpisodeCount != nil && *p.RemainingEpisodeCount > 0
}

type MovieEntry struct {
	TitleID   int64   `json:"id"`
	Title     string  `json:"title"`
	PosterURL *string `json:"posterUrl"`
	Runtime   *int    `json:"runtime"`
	WatchedAt string  `json:"watchedAt,omitempty"`
	Resolved  bool    `json:"resolved"`
}

type Totals struct {
	EpisodesWatched int `json:"episodesWatched"`
	SeriesMinutes   int `json:"seriesMinutes"`
	MoviesWatched   int `json:"moviesWatched"`
	MovieMinutes    int `json:"movieMinutes"`
}

// Result is an immutable projection; recompute it instead of patching.
type Result struct {
	Series []SeriesProgress `json:"series"`
	Movies []MovieEntry     `json:"movies"`
	Totals Totals           `json:"totals"`
}

// InProgress filters Series to titles with episodes left, keeping the order.
func (r Result) InProgress() []SeriesProgress {
	var out []SeriesProgress
	for _, s := range r.Series {
		if s.InProgress() {
			out = append(out, s)
		}
	}
	return out
}

// Partition splits raw events into series and movie ids in first-seen order.
// Events that cannot be units of their kind are skipped.
func Partition(events []watched.Event) (seriesIDs, movieIDs []int64) {
	seenS := make(map[int64]struct{})
	seenM := make(map[int64]struct{})
	for _, ev := range events {
		switch {
		case ev.Kind == watched.Series && ev.Season > 0 && ev.Episode > 0:
			if _, ok := seenS[ev.TitleID]; !ok {
				seenS[ev.TitleID] = struct{}{}
				seriesIDs = append(seriesIDs, ev.TitleID)
			}
		case ev.Kind == watched.Movie && ev.Season == 0 && ev.Episode == 0:
			if _, ok := seenM[ev.TitleID]; !ok {
				seenM[ev.TitleID] = struct{}{}
				movieIDs = append(movieIDs, ev.TitleID)
			}
		}
	}
	return seriesIDs, movieIDs
}

// Reconcile builds the progress projection. Titles missing from the meta
// maps still produce a record, with nulled metadata and a fallback name.
func Reconcile(events []watched.Event, series map[int64]SeriesMeta, movies map[int64]MovieMeta) Result {
	seriesIDs, movieIDs := Partition(events)

	episodes := make(map[int64]map[watched.EpisodeKey]struct{}, len(seriesIDs))
	movieDates := make(map[int64]string, len(movieIDs))
	for _, ev := range events {
		switch {
		case ev.Kind == watched.Series && ev.Season > 0 && ev.Episode > 0:
			set := episodes[ev.TitleID]
			if set == nil {
				set = make(map[watched.EpisodeKey]struct{})
				episodes[ev.TitleID] = set
			}
			set[ev.EpisodeKey()] = struct{}{}
		case ev.Kind == watched.Movie && ev.Season == 0 && ev.Episode == 0:
			if ev.WatchedAt > movieDates[ev.TitleID] {
				movieDates[ev.TitleID] = ev.WatchedAt
			}
		}
	}

	var res Result

	res.Series = make([]SeriesProgress, 0, len(seriesIDs))
	for _, id := range seriesIDs {
		p := SeriesProgress{TitleID: id, WatchedEpisodeCount: len(episodes[id])}
		if m, ok := series[id]; ok {
			p.Resolved = true
			p.Name = m.Name
			p.PosterURL = m.PosterURL
			p.BackdropURL = m.BackdropURL
			if t := m.TotalEpisodes; t != nil && *t > 0 {
				p.TotalEpisodeCount = t
			}
			p.AverageEpisodeRuntime = m.AverageEpisodeRuntime
		}
		if p.Name == "" {
			p.Name = "Serie " + strconv.FormatInt(id, 10)
		}
		p.RemainingEpisodeCount = Remaining(p.TotalEpisodeCount, p.WatchedEpisodeCount)
		res.Totals.EpisodesWatched += p.WatchedEpisodeCount
		if rt := p.AverageEpisodeRuntime; rt != nil && *rt > 0 {
			res.Totals.SeriesMinutes += *rt * p.WatchedEpisodeCount
		}
		res.Series = append(res.Series, p)
	}
	SortSeries(res.Series)

	res.Movies = make([]MovieEntry, 0, len(movieIDs))
	for _, id := range movieIDs {
		e := MovieEntry{TitleID: id, WatchedAt: movieDates[id]}
		if m, ok := movies[id]; ok {
			e.Resolved = true
			e.Title = m.Title
			e.PosterURL = m.PosterURL
			e.Runtime = m.Runtime
		}
		if e.Title == "" {
			e.Title = "Filme " + strconv.FormatInt(id, 10)
		}
		if e.Runtime != nil && *e.Runtime > 0 {
			res.Totals.MovieMinutes += *e.Runtime
		}
		res.Movies = append(res.Movies, e)
	}
	res.Totals.MoviesWatched = len(res.Movies)
	return res
}

// Remaining is total-watched clamped at zero, nil when total is unknown.
func Remaining(total *int, watchedCount int) *int {
	if total == nil || *total <= 0 {
		return nil
	}
	r := max(*total-watchedCount, 0)
	return &r
}

// SortSeries orders known remaining counts ascending (more watched first on
// ties), then unknown counts alphabetically.
func SortSeries(s []SeriesProgress) {
	slices.SortStableFunc(s, compareSeries)
}

func compareSeries(a, b SeriesProgress) int {
	ra, rb := a.RemainingEpisodeCount, b.RemainingEpisodeCount
	switch {
	case ra == nil && rb == nil:
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			strings.Compare(a.Name, b.Name),
		)
	case ra == nil:
		return 1
	case rb == nil:
		return -1
	}
	return cmp.Or(
		cmp.Compare(*ra, *rb),
		cmp.Compare(b.WatchedEpisodeCount, a.WatchedEpisodeCount),
	)
}
