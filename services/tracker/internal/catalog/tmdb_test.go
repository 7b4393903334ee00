package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

func newTMDBServer(t *testing.T, routes map[string]string) (*TMDB, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Query().Get("api_key") != "k" || r.URL.Query().Get("language") != "pt-BR" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if body == "500" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewTMDB(TMDBOptions{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()}), &hits
}

func TestTMDB_SeriesSummaries(t *testing.T) {
	c, _ := newTMDBServer(t, map[string]string{
		"/tv/1": `{"id":1,"name":"Dark","poster_path":"/p.jpg","backdrop_path":"/b.jpg","number_of_episodes":26,"episode_run_time":[52]}`,
		"/tv/2": `{"id":2,"name":"","poster_path":null,"number_of_episodes":0,"episode_run_time":[]}`,
		"/tv/3": "500",
	})

	got, err := c.SeriesSummaries(context.Background(), []int64{1, 2, 3, 1, -5})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected failed id omitted, got %d summaries", len(got))
	}
	dark := got[0]
	if dark.Name != "Dark" || *dark.PosterURL != "https://image.tmdb.org/t/p/w500/p.jpg" || *dark.BackdropURL != "https://image.tmdb.org/t/p/w1280/b.jpg" {
		t.Fatalf("unexpected summary %+v", dark)
	}
	if *dark.TotalEpisodes != 26 || *dark.AverageEpisodeRuntime != 52 {
		t.Fatalf("unexpected totals %+v", dark)
	}
	blank := got[1]
	if blank.Name != "Serie 2" || blank.PosterURL != nil || blank.TotalEpisodes != nil || blank.AverageEpisodeRuntime != nil {
		t.Fatalf("expected fallbacks, got %+v", blank)
	}
}

func TestTMDB_SummariesCapAtMaxBatch(t *testing.T) {
	routes := map[string]string{}
	ids := make([]int64, 0, 45)
	for i := int64(1); i <= 45; i++ {
		routes[fmt.Sprintf("/movie/%d", i)] = fmt.Sprintf(`{"id":%d,"title":"M%d","runtime":90}`, i, i)
		ids = append(ids, i)
	}
	c, hits := newTMDBServer(t, routes)

	got, err := c.MovieSummaries(context.Background(), ids)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != MaxBatch || atomic.LoadInt32(hits) != MaxBatch {
		t.Fatalf("expected %d summaries and requests, got %d/%d", MaxBatch, len(got), *hits)
	}
	if got[0].Title != "M1" || *got[0].Runtime != 90 {
		t.Fatalf("unexpected first movie %+v", got[0])
	}
}

func TestTMDB_NotConfigured(t *testing.T) {
	c := NewTMDB(TMDBOptions{})
	if got, err := c.SeriesSummaries(context.Background(), []int64{1}); err != nil || got != nil {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	if got, err := c.Search(context.Background(), "x"); err != nil || got != nil {
		t.Fatalf("expected empty search, got %v %v", got, err)
	}
	if _, err := c.Details(context.Background(), watched.Movie, 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestTMDB_Episodes(t *testing.T) {
	c, _ := newTMDBServer(t, map[string]string{
		"/tv/7":          `{"id":7,"seasons":[{"season_number":0},{"season_number":2},{"season_number":1}]}`,
		"/tv/7/season/1": `{"episodes":[{"episode_number":2,"name":" "},{"episode_number":1,"name":"Pilot","air_date":"2020-01-01","still_path":"/s.jpg"},{"episode_number":0}]}`,
		"/tv/7/season/2": `{"episodes":[{"episode_number":1,"name":"Back"}]}`,
		"/tv/7/season/0": `{"episodes":[{"episode_number":1,"name":"Special"}]}`,
	})

	eps, err := c.Episodes(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(eps))
	}
	if eps[0].Key() != (watched.EpisodeKey{Season: 1, Episode: 1}) || eps[2].Key() != (watched.EpisodeKey{Season: 2, Episode: 1}) {
		t.Fatalf("expected sorted listing, got %+v", eps)
	}
	if eps[1].Name != "Episodio 2" {
		t.Fatalf("expected fallback name, got %q", eps[1].Name)
	}
	if *eps[0].StillURL != "https://image.tmdb.org/t/p/w780/s.jpg" || *eps[0].AirDate != "2020-01-01" {
		t.Fatalf("unexpected pilot %+v", eps[0])
	}
}

func TestTMDB_EpisodesUnknownSeries(t *testing.T) {
	c, _ := newTMDBServer(t, map[string]string{})
	eps, err := c.Episodes(context.Background(), 99)
	if err != nil || len(eps) != 0 {
		t.Fatalf("expected empty listing, got %v %v", eps, err)
	}
}

func TestTMDB_Search(t *testing.T) {
	var results []string
	for i := 1; i <= 20; i++ {
		results = append(results, fmt.Sprintf(`{"id":%d,"media_type":"movie","title":"Film %d","release_date":"2001-02-03","vote_count":%d}`, 100+i, i, i))
	}
	results[0] = `{"id":1,"media_type":"person","name":"Someone"}`
	results[1] = `{"id":2,"media_type":"tv","name":"Show","first_air_date":"1999","poster_path":"/t.jpg"}`
	c, _ := newTMDBServer(t, map[string]string{
		"/search/multi": `{"results":[` + strings.Join(results, ",") + `]}`,
		"/tv/2":         `{"id":2,"number_of_episodes":12}`,
	})

	got, err := c.Search(context.Background(), "  show ")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != MaxSearchResults {
		t.Fatalf("expected %d results, got %d", MaxSearchResults, len(got))
	}
	show := got[0]
	if show.MediaType != watched.Series || show.TypeLabel != "Serie" || show.Year != "1999" || *show.Episodes != 12 {
		t.Fatalf("unexpected tv result %+v", show)
	}
	if *show.PosterURL != "https://image.tmdb.org/t/p/w154/t.jpg" {
		t.Fatalf("unexpected thumb %q", *show.PosterURL)
	}
	film := got[1]
	if film.TypeLabel != "Filme" || film.Year != "2001" || film.Episodes != nil || *film.Rank != 3 {
		t.Fatalf("unexpected movie result %+v", film)
	}
}

func TestTMDB_Details(t *testing.T) {
	c, _ := newTMDBServer(t, map[string]string{
		"/movie/5": `{"id":5,"title":"Heat","runtime":170,"genres":[{"id":1,"name":"Crime"}],
			"videos":{"results":[{"key":"a","site":"Vimeo","type":"Trailer"},{"key":"b","site":"YouTube","type":"Teaser"},{"key":"c","site":"YouTube","type":"Trailer"}]},
			"credits":{"cast":[{"id":9,"name":"Al","character":"Vincent","profile_path":"/al.jpg"}]}}`,
		"/movie/5/watch/providers": `{"results":{"US":{"flatrate":[{"provider_id":1,"provider_name":"Flix","logo_path":"/f.png"}]},
			"BR":{"rent":[{"provider_id":2,"provider_name":"Loja","logo_path":"/l.png"},{"provider_id":2,"provider_name":"Loja","logo_path":"/l.png"},{"provider_id":3,"provider_name":"NoLogo"}]}}}`,
	})

	d, err := c.Details(context.Background(), watched.Movie, 5)
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "Heat" || *d.Runtime != 170 || len(d.Genres) != 1 {
		t.Fatalf("unexpected details %+v", d)
	}
	if d.TrailerKey == nil || *d.TrailerKey != "c" {
		t.Fatalf("expected youtube trailer c, got %v", d.TrailerKey)
	}
	if len(d.Providers) != 1 || d.Providers[0].Name != "Loja" || d.Providers[0].LogoURL != "https://image.tmdb.org/t/p/w92/l.png" {
		t.Fatalf("expected BR providers first and deduplicated, got %+v", d.Providers)
	}
	if len(d.Cast) != 1 || *d.Cast[0].ProfileURL != "https://image.tmdb.org/t/p/w185/al.jpg" {
		t.Fatalf("unexpected cast %+v", d.Cast)
	}

	if _, err := c.Details(context.Background(), watched.Series, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTMDB_Person(t *testing.T) {
	c, _ := newTMDBServer(t, map[string]string{
		"/person/3": `{"id":3,"name":"Ana","biography":" bio "}`,
		"/person/3/combined_credits": `{"cast":[
			{"id":1,"media_type":"movie","title":"Low","popularity":1},
			{"id":2,"media_type":"movie","title":"High","popularity":9,"release_date":"2010-01-01"},
			{"id":3,"media_type":"tv","name":"Show","popularity":5}]}`,
	})

	p, err := c.Person(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Ana" || p.Biography != "bio" {
		t.Fatalf("unexpected person %+v", p)
	}
	if len(p.Movies) != 2 || p.Movies[0].Title != "High" || p.Movies[0].Year != "2010" {
		t.Fatalf("expected movies by popularity, got %+v", p.Movies)
	}
	if len(p.Series) != 1 || p.Series[0].Title != "Show" {
		t.Fatalf("unexpected series %+v", p.Series)
	}
}
