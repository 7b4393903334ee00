package progress

import (
	"testing"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

func intp(n int) *int { return &n }

func tv(id int64, s, e int, at string) watched.Event {
	return watched.Event{Kind: watched.Series, TitleID: id, Season: s, Episode: e, WatchedAt: at}
}

func movie(id int64, at string) watched.Event {
	return watched.Event{Kind: watched.Movie, TitleID: id, WatchedAt: at}
}

func TestReconcile_DuplicateKeysCountOnce(t *testing.T) {
	events := []watched.Event{
		tv(1, 1, 1, "2024-01-01 12:00:00"),
		tv(1, 1, 1, "2024-01-01 12:00:00"),
	}
	res := Reconcile(events, map[int64]SeriesMeta{1: {Name: "A", TotalEpisodes: intp(10)}}, nil)
	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	if got := res.Series[0].WatchedEpisodeCount; got != 1 {
		t.Fatalf("watched = %d, want 1", got)
	}
	if got := *res.Series[0].RemainingEpisodeCount; got != 9 {
		t.Fatalf("remaining = %d, want 9", got)
	}
	if res.Totals.EpisodesWatched != 1 {
		t.Fatalf("totals episodes = %d", res.Totals.EpisodesWatched)
	}
}

func TestReconcile_RemainingAndUnknownTotal(t *testing.T) {
	var events []watched.Event
	for e := 1; e <= 7; e++ {
		events = append(events, tv(10, 1, e, ""))
	}
	events = append(events, tv(20, 1, 1, ""))

	res := Reconcile(events, map[int64]SeriesMeta{
		10: {Name: "Known", TotalEpisodes: intp(10)},
		20: {Name: "Unknown"},
	}, nil)

	if res.Series[0].TitleID != 10 || *res.Series[0].RemainingEpisodeCount != 3 {
		t.Fatalf("first = %+v", res.Series[0])
	}
	last := res.Series[1]
	if last.TitleID != 20 || last.RemainingEpisodeCount != nil || last.TotalEpisodeCount != nil {
		t.Fatalf("unknown total must sort last with null remaining, got %+v", last)
	}
}

func TestReconcile_MissingMetadataStillEmitted(t *testing.T) {
	res := Reconcile(
		[]watched.Event{tv(7, 1, 1, ""), movie(8, "2024-02-01 12:00:00")},
		nil, nil,
	)
	if len(res.Series) != 1 || res.Series[0].Name != "Serie 7" || res.Series[0].Resolved {
		t.Fatalf("series = %+v", res.Series)
	}
	if res.Series[0].RemainingEpisodeCount != nil {
		t.Fatal("expected null remaining without catalog data")
	}
	if len(res.Movies) != 1 || res.Movies[0].Title != "Filme 8" || res.Movies[0].Resolved {
		t.Fatalf("movies = %+v", res.Movies)
	}
}

func TestRemaining_NeverNegative(t *testing.T) {
	if got := Remaining(intp(3), 5); got == nil || *got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if Remaining(nil, 1) != nil {
		t.Fatal("expected nil for unknown total")
	}
	if Remaining(intp(0), 1) != nil {
		t.Fatal("expected nil for unreported (zero) total")
	}
}

func TestSortSeries(t *testing.T) {
	s := []SeriesProgress{
		{TitleID: 1, Name: "zeta"},
		{TitleID: 2, Name: "b", RemainingEpisodeCount: intp(5), WatchedEpisodeCount: 1},
		{TitleID: 3, Name: "Alpha"},
		{TitleID: 4, Name: "c", RemainingEpisodeCount: intp(2), WatchedEpisodeCount: 3},
		{TitleID: 5, Name: "d", RemainingEpisodeCount: intp(2), WatchedEpisodeCount: 8},
		{TitleID: 6, Name: "e", RemainingEpisodeCount: intp(0), WatchedEpisodeCount: 12},
	}
	SortSeries(s)
	want := []int64{6, 5, 4, 2, 3, 1}
	for i, id := range want {
		if s[i].TitleID != id {
			t.Fatalf("position %d: got %d, want %d (%+v)", i, s[i].TitleID, id, s)
		}
	}
}

func TestReconcile_TotalsAndInProgress(t *testing.T) {
	events := []watched.Event{
		tv(1, 1, 1, ""), tv(1, 1, 2, ""),
		tv(2, 1, 1, ""),
		movie(50, "2024-01-01 12:00:00"), movie(50, "2024-03-01 12:00:00"), movie(51, ""),
		{Kind: watched.Series, TitleID: 3, Season: 0, Episode: 1},
	}
	res := Reconcile(events,
		map[int64]SeriesMeta{
			1: {Name: "One", TotalEpisodes: intp(2), AverageEpisodeRuntime: intp(30)},
			2: {Name: "Two", TotalEpisodes: intp(5), AverageEpisodeRuntime: intp(45)},
		},
		map[int64]MovieMeta{
			50: {Title: "Fifty", Runtime: intp(100)},
			51: {Title: "FiftyOne"},
		},
	)

	want := Totals{EpisodesWatched: 3, SeriesMinutes: 2*30 + 45, MoviesWatched: 2, MovieMinutes: 100}
	if res.Totals != want {
		t.Fatalf("totals = %+v, want %+v", res.Totals, want)
	}
	inProgress := res.InProgress()
	if len(inProgress) != 1 || inProgress[0].TitleID != 2 {
		t.Fatalf("in progress = %+v", inProgress)
	}
	if res.Movies[0].WatchedAt != "2024-03-01 12:00:00" {
		t.Fatalf("expected latest movie date, got %q", res.Movies[0].WatchedAt)
	}
}
