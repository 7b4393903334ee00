// Package catalog fetches title metadata from TMDB and layers caching,
// request deduplication and id batching on top.
package catalog

import (
	"context"
	"errors"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

const (
	// MaxBatch is the largest id list a single summaries call accepts.
	MaxBatch = 40
	// MaxSeasons bounds the seasons fetched for an episode listing.
	MaxSeasons = 25
	// MaxSearchResults bounds the search response.
	MaxSearchResults = 14
	// MaxCast bounds the cast list in Details.
	MaxCast = 16
	// MaxCredits bounds each credit list in Person.
	MaxCredits = 24
)

var (
	ErrNotFound      = errors.New("catalog: not found")
	ErrNotConfigured = errors.New("catalog: TMDB_API_KEY is not configured")
)

// Provider is the catalog collaborator. Summary lookups omit ids that could
// not be resolved instead of failing the whole call.
type Provider interface {
	SeriesSummaries(ctx context.Context, ids []int64) ([]SeriesSummary, error)
	MovieSummaries(ctx context.Context, ids []int64) ([]MovieSummary, error)
	// Episodes lists regular-season episodes sorted by (season, episode).
	Episodes(ctx context.Context, seriesID int64) ([]Episode, error)
	Search(ctx context.Context, query string) ([]SearchResult, error)
	Details(ctx context.Context, kind watched.MediaKind, id int64) (Details, error)
	Person(ctx context.Context, id int64) (Person, error)
}

type SeriesSummary struct {
	ID                    int64   `json:"id"`
	Name                  string  `json:"name"`
	PosterURL             *string `json:"posterUrl"`
	BackdropURL           *string `json:"backdropUrl"`
	TotalEpisodes         *int    `json:"totalEpisodes"`
	AverageEpisodeRuntime *int    `json:"averageEpisodeRuntime"`
}

type MovieSummary struct {
	ID        int64   `json:"id"`
	Title     string  `json:"title"`
	PosterURL *string `json:"posterUrl"`
	Runtime   *int    `json:"runtime"`
}

type Episode struct {
	SeasonNumber  int     `json:"seasonNumber"`
	EpisodeNumber int     `json:"episodeNumber"`
	Name          string  `json:"name"`
	AirDate       *string `json:"airDate"`
	StillURL      *string `json:"stillUrl"`
	Overview      string  `json:"overview"`
}

func (e Episode) Key() watched.EpisodeKey {
	return watched.EpisodeKey{Season: e.SeasonNumber, Episode: e.EpisodeNumber}
}

type SearchResult struct {
	ID        int64             `json:"id"`
	MediaType watched.MediaKind `json:"mediaType"`
	Title     string            `json:"title"`
	PosterURL *string           `json:"posterUrl"`
	Year      string            `json:"year"`
	TypeLabel string            `json:"typeLabel"`
	Rank      *int              `json:"rank"`
	Episodes  *int              `json:"episodes"`
}

type Details struct {
	ID               int64             `json:"id"`
	MediaType        watched.MediaKind `json:"mediaType"`
	Title            string            `json:"title"`
	OriginalTitle    string            `json:"originalTitle"`
	Overview         string            `json:"overview"`
	PosterURL        *string           `json:"posterUrl"`
	BackdropURL      *string           `json:"backdropUrl"`
	VoteAverage      float64           `json:"voteAverage"`
	VoteCount        int               `json:"voteCount"`
	ReleaseDate      string            `json:"releaseDate"`
	Genres           []string          `json:"genres"`
	Status           string            `json:"status"`
	Runtime          *int              `json:"runtime"`
	EpisodeRuntime   *int              `json:"episodeRuntime"`
	NumberOfSeasons  int               `json:"numberOfSeasons"`
	NumberOfEpisodes int               `json:"numberOfEpisodes"`
	TrailerKey       *string           `json:"trailerKey"`
	Providers        []WatchProvider   `json:"providers"`
	Cast             []CastMember      `json:"cast"`
}

type WatchProvider struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl"`
}

type CastMember struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Character  string  `json:"character"`
	ProfileURL *string `json:"profileUrl"`
}

type Person struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Biography  string   `json:"biography"`
	ProfileURL *string  `json:"profileUrl"`
	Movies     []Credit `json:"movies"`
	Series     []Credit `json:"series"`
}

type Credit struct {
	ID          int64             `json:"id"`
	MediaType   watched.MediaKind `json:"mediaType"`
	Title       string            `json:"title"`
	PosterURL   *string           `json:"posterUrl"`
	VoteAverage float64           `json:"voteAverage"`
	Character   string            `json:"character,omitempty"`
	Year        string            `json:"year"`
	Popularity  float64           `json:"-"`
}

// CleanIDs drops non-positive and duplicate ids, keeping first-seen order.
func CleanIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
