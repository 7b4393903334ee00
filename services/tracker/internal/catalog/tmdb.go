package catalog

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

const imageBase = "https://image.tmdb.org/t/p/"

const (
	posterSize      = "w500"
	backdropSize    = "w1280"
	fullBackdrop    = "original"
	stillSize       = "w780"
	searchThumbSize = "w154"
	profileSize     = "w185"
	logoSize        = "w92"
)

var providerRegions = []string{"BR", "US"}

type TMDBOptions struct {
	BaseURL  string
	APIKey   string
	Language string
	RPS      float64
	// Burst is how many requests may start at once; 0 means one second's worth.
	Burst      int
	HTTPClient *http.Client
	Logger     *zap.Logger
	// Fanout bounds concurrent per-id requests inside one call.
	Fanout int
}

// TMDB is the catalog Provider backed by the TMDB v3 REST API.
type TMDB struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	limiter  *Limiter
	log      *zap.Logger
	fanout   int
}

func NewTMDB(o TMDBOptions) *TMDB {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.themoviedb.org/3"
	}
	if o.Language == "" {
		o.Language = "pt-BR"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Fanout <= 0 {
		o.Fanout = 8
	}
	return &TMDB{
		baseURL:  strings.TrimRight(o.BaseURL, "/"),
		apiKey:   o.APIKey,
		language: o.Language,
		http:     o.HTTPClient,
		limiter:  NewLimiter(o.RPS, o.Burst),
		log:      o.Logger,
		fanout:   o.Fanout,
	}
}

// Close drops idle keep-alive connections to TMDB.
func (c *TMDB) Close() { c.http.CloseIdleConnections() }

func (c *TMDB) Configured() bool { return c.apiKey != "" }

type tmdbNamed struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tmdbVideo struct {
	Key      string `json:"key"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

type tmdbCast struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Character   string  `json:"character"`
	ProfilePath *string `json:"profile_path"`
}

type tmdbDetail struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	Name             string      `json:"name"`
	OriginalTitle    string      `json:"original_title"`
	OriginalName     string      `json:"original_name"`
	Overview         string      `json:"overview"`
	PosterPath       *string     `json:"poster_path"`
	BackdropPath     *string     `json:"backdrop_path"`
	VoteAverage      float64     `json:"vote_average"`
	VoteCount        int         `json:"vote_count"`
	ReleaseDate      string      `json:"release_date"`
	FirstAirDate     string      `json:"first_air_date"`
	Genres           []tmdbNamed `json:"genres"`
	Status           string      `json:"status"`
	Runtime          int         `json:"runtime"`
	EpisodeRunTime   []int       `json:"episode_run_time"`
	NumberOfSeasons  int         `json:"number_of_seasons"`
	NumberOfEpisodes int         `json:"number_of_episodes"`
	Seasons          []struct {
		SeasonNumber int `json:"season_number"`
	} `json:"seasons"`
	Videos struct {
		Results []tmdbVideo `json:"results"`
	} `json:"videos"`
	Credits struct {
		Cast []tmdbCast `json:"cast"`
	} `json:"credits"`
}

type tmdbSeason struct {
	Episodes []struct {
		EpisodeNumber int     `json:"episode_number"`
		Name          string  `json:"name"`
		AirDate       string  `json:"air_date"`
		StillPath     *string `json:"still_path"`
		Overview      string  `json:"overview"`
	} `json:"episodes"`
}

type tmdbMediaItem struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	PosterPath   *string `json:"poster_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteCount    *int    `json:"vote_count"`
	VoteAverage  float64 `json:"vote_average"`
	Character    string  `json:"character"`
	Popularity   float64 `json:"popularity"`
}

type tmdbProvider struct {
	ProviderID   int64   `json:"provider_id"`
	ProviderName string  `json:"provider_name"`
	LogoPath     *string `json:"logo_path"`
}

type tmdbProviders struct {
	Results map[string]struct {
		Flatrate []tmdbProvider `json:"flatrate"`
		Rent     []tmdbProvider `json:"rent"`
		Buy      []tmdbProvider `json:"buy"`
	} `json:"results"`
}

type tmdbPerson struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Biography   string  `json:"biography"`
	ProfilePath *string `json:"profile_path"`
}

func (c *TMDB) SeriesSummaries(ctx context.Context, ids []int64) ([]SeriesSummary, error) {
	return fetchEach(ctx, c, "tv", ids, func(id int64, d tmdbDetail) SeriesSummary {
		return SeriesSummary{
			ID:                    id,
			Name:                  fallback(d.Name, "Serie "+strconv.FormatInt(id, 10)),
			PosterURL:             imageURL(posterSize, d.PosterPath),
			BackdropURL:           imageURL(backdropSize, d.BackdropPath),
			TotalEpisodes:         positive(d.NumberOfEpisodes),
			AverageEpisodeRuntime: firstRuntime(d.EpisodeRunTime),
		}
	})
}

func (c *TMDB) MovieSummaries(ctx context.Context, ids []int64) ([]MovieSummary, error) {
	return fetchEach(ctx, c, "movie", ids, func(id int64, d tmdbDetail) MovieSummary {
		return MovieSummary{
			ID:        id,
			Title:     fallback(d.Title, "Filme "+strconv.FormatInt(id, 10)),
			PosterURL: imageURL(posterSize, d.PosterPath),
			Runtime:   positive(d.Runtime),
		}
	})
}

// fetchEach resolves up to MaxBatch ids concurrently. Ids that fail are
// logged and omitted.
func fetchEach[T any](ctx context.Context, c *TMDB, kind string, ids []int64, build func(int64, tmdbDetail) T) ([]T, error) {
	if !c.Configured() {
		return nil, nil
	}
	ids = CleanIDs(ids)
	if len(ids) > MaxBatch {
		ids = ids[:MaxBatch]
	}

	slots := make([]*T, len(ids))
	var g errgroup.Group
	g.SetLimit(c.fanout)
	for i, id := range ids {
		g.Go(func() error {
			var d tmdbDetail
			if err := c.get(ctx, "/"+kind+"/"+strconv.FormatInt(id, 10), nil, &d); err != nil {
				c.log.Warn("tmdb summary failed", zap.String("kind", kind), zap.Int64("title_id", id), zap.Error(err))
				return nil
			}
			v := build(id, d)
			slots[i] = &v
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (c *TMDB) Episodes(ctx context.Context, seriesID int64) ([]Episode, error) {
	if !c.Configured() {
		return nil, nil
	}
	var show tmdbDetail
	if err := c.get(ctx, "/tv/"+strconv.FormatInt(seriesID, 10), nil, &show); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var seasons []int
	for _, s := range show.Seasons {
		if s.SeasonNumber > 0 {
			seasons = append(seasons, s.SeasonNumber)
		}
	}
	if len(seasons) > MaxSeasons {
		seasons = seasons[:MaxSeasons]
	}

	perSeason := make([][]Episode, len(seasons))
	var g errgroup.Group
	g.SetLimit(c.fanout)
	for i, season := range seasons {
		g.Go(func() error {
			var sd tmdbSeason
			path := fmt.Sprintf("/tv/%d/season/%d", seriesID, season)
			if err := c.get(ctx, path, nil, &sd); err != nil {
				c.log.Warn("tmdb season failed", zap.Int64("title_id", seriesID), zap.Int("season", season), zap.Error(err))
				return nil
			}
			for _, ep := range sd.Episodes {
				if ep.EpisodeNumber <= 0 {
					continue
				}
				perSeason[i] = append(perSeason[i], Episode{
					SeasonNumber:  season,
					EpisodeNumber: ep.EpisodeNumber,
					Name:          fallback(strings.TrimSpace(ep.Name), "Episodio "+strconv.Itoa(ep.EpisodeNumber)),
					AirDate:       nonEmpty(ep.AirDate),
					StillURL:      imageURL(stillSize, ep.StillPath),
					Overview:      ep.Overview,
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := slices.Concat(perSeason...)
	slices.SortFunc(out, func(a, b Episode) int { return a.Key().Compare(b.Key()) })
	return out, nil
}

func (c *TMDB) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || !c.Configured() {
		return nil, nil
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("include_adult", "false")
	q.Set("page", "1")
	var resp struct {
		Results []tmdbMediaItem `json:"results"`
	}
	if err := c.get(ctx, "/search/multi", q, &resp); err != nil {
		return nil, err
	}

	items := slices.DeleteFunc(resp.Results, func(it tmdbMediaItem) bool {
		return it.MediaType != string(watched.Movie) && it.MediaType != string(watched.Series)
	})
	if len(items) > MaxSearchResults {
		items = items[:MaxSearchResults]
	}

	episodes := make([]*int, len(items))
	var g errgroup.Group
	g.SetLimit(c.fanout)
	for i, it := range items {
		if it.MediaType != string(watched.Series) {
			continue
		}
		g.Go(func() error {
			var d tmdbDetail
			if err := c.get(ctx, "/tv/"+strconv.FormatInt(it.ID, 10), nil, &d); err == nil {
				episodes[i] = positive(d.NumberOfEpisodes)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]SearchResult, 0, len(items))
	for i, it := range items {
		kind := watched.MediaKind(it.MediaType)
		r := SearchResult{
			ID:        it.ID,
			MediaType: kind,
			Title:     fallback(cmp.Or(it.Title, it.Name), "Item "+strconv.FormatInt(it.ID, 10)),
			PosterURL: imageURL(searchThumbSize, it.PosterPath),
			Year:      cmp.Or(year(it), "-"),
			TypeLabel: "Serie",
			Rank:      it.VoteCount,
			Episodes:  episodes[i],
		}
		if kind == watched.Movie {
			r.TypeLabel = "Filme"
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *TMDB) Details(ctx context.Context, kind watched.MediaKind, id int64) (Details, error) {
	if !c.Configured() {
		return Details{}, ErrNotConfigured
	}
	base := "/" + string(kind) + "/" + strconv.FormatInt(id, 10)

	var d tmdbDetail
	var prov tmdbProviders
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := url.Values{}
		q.Set("append_to_response", "videos,credits")
		return c.get(gctx, base, q, &d)
	})
	if kind == watched.Movie {
		g.Go(func() error {
			if err := c.get(gctx, base+"/watch/providers", nil, &prov); err != nil {
				c.log.Warn("tmdb watch providers failed", zap.Int64("title_id", id), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Details{}, err
	}

	out := Details{
		ID:               id,
		MediaType:        kind,
		Title:            fallback(cmp.Or(d.Title, d.Name), "Sem titulo"),
		OriginalTitle:    cmp.Or(d.OriginalTitle, d.OriginalName),
		Overview:         strings.TrimSpace(d.Overview),
		PosterURL:        imageURL(posterSize, d.PosterPath),
		BackdropURL:      imageURL(fullBackdrop, d.BackdropPath),
		VoteAverage:      d.VoteAverage,
		VoteCount:        d.VoteCount,
		ReleaseDate:      cmp.Or(d.ReleaseDate, d.FirstAirDate),
		Status:           d.Status,
		Runtime:          positive(d.Runtime),
		EpisodeRuntime:   firstRuntime(d.EpisodeRunTime),
		NumberOfSeasons:  d.NumberOfSeasons,
		NumberOfEpisodes: d.NumberOfEpisodes,
		Genres:           []string{},
		Cast:             []CastMember{},
		Providers:        []WatchProvider{},
	}
	for _, genre := range d.Genres {
		out.Genres = append(out.Genres, genre.Name)
	}
	for _, p := range d.Credits.Cast {
		if len(out.Cast) == MaxCast {
			break
		}
		out.Cast = append(out.Cast, CastMember{ID: p.ID, Name: p.Name, Character: p.Character, ProfileURL: imageURL(profileSize, p.ProfilePath)})
	}
	if kind == watched.Movie {
		out.TrailerKey = trailerKey(d.Videos.Results)
		out.Providers = pickProviders(prov)
	}
	return out, nil
}

func (c *TMDB) Person(ctx context.Context, id int64) (Person, error) {
	if !c.Configured() {
		return Person{}, ErrNotConfigured
	}
	base := "/person/" + strconv.FormatInt(id, 10)

	var p tmdbPerson
	var credits struct {
		Cast []tmdbMediaItem `json:"cast"`
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, base, nil, &p) })
	g.Go(func() error { return c.get(gctx, base+"/combined_credits", nil, &credits) })
	if err := g.Wait(); err != nil {
		return Person{}, err
	}

	out := Person{
		ID:         id,
		Name:       p.Name,
		Biography:  strings.TrimSpace(p.Biography),
		ProfileURL: imageURL(profileSize, p.ProfilePath),
		Movies:     []Credit{},
		Series:     []Credit{},
	}
	for _, it := range credits.Cast {
		cr := Credit{
			ID:          it.ID,
			MediaType:   watched.MediaKind(it.MediaType),
			Title:       fallback(cmp.Or(it.Title, it.Name), "Sem titulo"),
			PosterURL:   imageURL(posterSize, it.PosterPath),
			VoteAverage: it.VoteAverage,
			Character:   it.Character,
			Year:        year(it),
			Popularity:  it.Popularity,
		}
		switch cr.MediaType {
		case watched.Movie:
			out.Movies = append(out.Movies, cr)
		case watched.Series:
			out.Series = append(out.Series, cr)
		}
	}
	out.Movies = topByPopularity(out.Movies)
	out.Series = topByPopularity(out.Series)
	return out, nil
}

func (c *TMDB) get(ctx context.Context, path string, extra url.Values, dest any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)
	for k, v := range extra {
		q[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tracker/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb: %s status %d body=%q", path, resp.StatusCode, string(b[:min(len(b), 200)]))
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("tmdb: %s decode error: %w", path, err)
	}
	return nil
}

func imageURL(size string, path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	u := imageBase + size + *path
	return &u
}

func positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func firstRuntime(rt []int) *int {
	if len(rt) == 0 {
		return nil
	}
	return positive(rt[0])
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func year(it tmdbMediaItem) string {
	raw := it.FirstAirDate
	if it.MediaType == string(watched.Movie) {
		raw = it.ReleaseDate
	}
	if len(raw) < 4 {
		return ""
	}
	return raw[:4]
}

// trailerKey prefers an official YouTube trailer, then any YouTube trailer,
// then any YouTube video.
func trailerKey(videos []tmdbVideo) *string {
	var yt []tmdbVideo
	for _, v := range videos {
		if v.Site == "YouTube" && v.Key != "" {
			yt = append(yt, v)
		}
	}
	if len(yt) == 0 {
		return nil
	}
	pick := yt[0]
	if i := slices.IndexFunc(yt, func(v tmdbVideo) bool { return v.Type == "Trailer" && v.Official }); i >= 0 {
		pick = yt[i]
	} else if i := slices.IndexFunc(yt, func(v tmdbVideo) bool { return v.Type == "Trailer" }); i >= 0 {
		pick = yt[i]
	}
	return &pick.Key
}

func pickProviders(p tmdbProviders) []WatchProvider {
	out := []WatchProvider{}
	for _, region := range providerRegions {
		src, ok := p.Results[region]
		if !ok {
			continue
		}
		seen := map[int64]bool{}
		for _, pr := range slices.Concat(src.Flatrate, src.Rent, src.Buy) {
			logo := imageURL(logoSize, pr.LogoPath)
			if seen[pr.ProviderID] || logo == nil {
				continue
			}
			seen[pr.ProviderID] = true
			out = append(out, WatchProvider{ID: pr.ProviderID, Name: pr.ProviderName, LogoURL: *logo})
			if len(out) == 8 {
				break
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return out
}

func topByPopularity(cs []Credit) []Credit {
	slices.SortStableFunc(cs, func(a, b Credit) int { return cmp.Compare(b.Popularity, a.Popularity) })
	if len(cs) > MaxCredits {
		cs = cs[:MaxCredits]
	}
	return cs
}
