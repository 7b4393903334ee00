package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/analytics"
	"github.com/example/tracksm/internal/platform/api"
	"github.com/example/tracksm/internal/platform/auth"
	"github.com/example/tracksm/internal/platform/httpserver"
	"github.com/example/tracksm/services/tracker/internal/catalog"
	trackerhttp "github.com/example/tracksm/services/tracker/internal/http"
	"github.com/example/tracksm/services/tracker/internal/latest"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

const (
	minQueryLen  = 2
	maxSummaries = 40
)

type searchResponse struct {
	Stale   bool                   `json:"stale"`
	Results []catalog.SearchResult `json:"results"`
}

// Search handles GET /v1/catalog/search?q=. Each client has one live search:
// a response overtaken by a newer query from the same client comes back
// stale with no results.
func Search(p catalog.Provider, searches *latest.Tokens, ap *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if utf8.RuneCountInString(q) < minQueryLen {
			api.WriteJSON(w, http.StatusOK, searchResponse{Results: []catalog.SearchResult{}})
			return
		}

		tok := searches.Begin("search:" + trackerhttp.ClientKey(r))
		defer searches.Done(tok)

		results, err := p.Search(r.Context(), q)
		if err != nil {
			log.Warn("catalog search failed", zap.String("request_id", rid), zap.Error(err))
			results = nil
		}
		if !searches.IsCurrent(tok) {
			api.WriteJSON(w, http.StatusOK, searchResponse{Stale: true, Results: []catalog.SearchResult{}})
			return
		}
		if results == nil {
			results = []catalog.SearchResult{}
		}

		uid, _ := auth.UserIDFromContext(r.Context())
		ap.Publish(analytics.SubjectCatalogSearched, "catalog_searched", uid, map[string]any{
			"query":   q,
			"results": len(results),
		})
		api.WriteJSON(w, http.StatusOK, searchResponse{Results: results})
	}
}

// GetDetails handles GET /v1/catalog/{kind}/{id}
func GetDetails(p catalog.Provider, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		kind, err := watched.ParseMediaKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		id, ok := positiveParam(w, r, rid, "id")
		if !ok {
			return
		}
		d, err := p.Details(r.Context(), kind, id)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, d)
	}
}

// GetEpisodes handles GET /v1/catalog/tv/{id}/episodes. An unavailable
// listing degrades to an empty one.
func GetEpisodes(p catalog.Provider, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := positiveParam(w, r, rid, "id")
		if !ok {
			return
		}
		eps, err := p.Episodes(r.Context(), id)
		if err != nil {
			log.Warn("episode listing unavailable", zap.Int64("series_id", id), zap.Error(err))
			eps = nil
		}
		if eps == nil {
			eps = []catalog.Episode{}
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"episodes": eps})
	}
}

// GetPerson handles GET /v1/catalog/person/{id}
func GetPerson(p catalog.Provider, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := positiveParam(w, r, rid, "id")
		if !ok {
			return
		}
		person, err := p.Person(r.Context(), id)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, person)
	}
}

// GetSummaries handles GET /v1/catalog/summaries?kind=tv&ids=1,2,3. At most
// 40 ids are resolved; failed lookups are omitted.
func GetSummaries(p catalog.Provider, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		kind, err := watched.ParseMediaKind(r.URL.Query().Get("kind"))
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		ids := parseIDs(r.URL.Query().Get("ids"))
		if len(ids) > maxSummaries {
			ids = ids[:maxSummaries]
		}

		var items any
		switch kind {
		case watched.Series:
			res, err := p.SeriesSummaries(r.Context(), ids)
			if err != nil {
				log.Warn("series summaries unavailable", zap.Int("ids", len(ids)), zap.Error(err))
			}
			if res == nil {
				res = []catalog.SeriesSummary{}
			}
			items = res
		case watched.Movie:
			res, err := p.MovieSummaries(r.Context(), ids)
			if err != nil {
				log.Warn("movie summaries unavailable", zap.Int("ids", len(ids)), zap.Error(err))
			}
			if res == nil {
				res = []catalog.MovieSummary{}
			}
			items = res
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// parseIDs reads a comma-separated list, skipping junk and duplicates.
func parseIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	return catalog.CleanIDs(ids)
}
