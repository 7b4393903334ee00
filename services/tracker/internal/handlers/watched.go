package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/analytics"
	"github.com/example/tracksm/internal/platform/api"
	"github.com/example/tracksm/internal/platform/httpserver"
	"github.com/example/tracksm/services/tracker/internal/store"
	"github.com/example/tracksm/services/tracker/internal/syncgw"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

type watchedRequest struct {
	MediaType     string `json:"mediaType"`
	TmdbID        int64  `json:"tmdbId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	WatchedAt     string `json:"watchedAt,omitempty"`
}

func (req watchedRequest) key(userID string) (watched.Key, error) {
	kind, err := watched.ParseMediaKind(req.MediaType)
	if err != nil {
		return watched.Key{}, err
	}
	k := watched.NormalizeMovie(watched.Key{
		UserID:  userID,
		Kind:    kind,
		TitleID: req.TmdbID,
		Season:  req.SeasonNumber,
		Episode: req.EpisodeNumber,
	})
	return k, watched.Validate(k)
}

type upsertResponse struct {
	Status    string `json:"status"`
	WatchedAt string `json:"watchedAt"`
}

// ListWatched handles GET /v1/watched
func ListWatched(repo store.WatchedRepository, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}

		q := r.URL.Query()
		var f store.Filter
		if raw := q.Get("mediaType"); raw != "" {
			kind, err := watched.ParseMediaKind(raw)
			if err != nil {
				writeError(w, log, rid, err)
				return
			}
			f.Kind = &kind
		}
		titleID, err := optionalInt(q.Get("tmdbId"))
		if err != nil {
			api.BadRequest(w, "INVALID_TMDB_ID", "invalid tmdbId", rid, nil)
			return
		}
		f.TitleID = titleID
		for name, dst := range map[string]**int{"seasonNumber": &f.Season, "episodeNumber": &f.Episode} {
			n, err := optionalInt(q.Get(name))
			if err != nil {
				api.BadRequest(w, "INVALID_QUERY", "invalid "+name, rid, map[string]any{"field": name})
				return
			}
			if n != nil {
				v := int(*n)
				*dst = &v
			}
		}

		units, err := repo.List(r.Context(), uid, f)
		if err != nil {
			writeError(w, log, rid, fmt.Errorf("%w: list: %w", syncgw.ErrCollaboratorUnavailable, err))
			return
		}
		out := make([]watched.Event, 0, len(units))
		for _, u := range units {
			out = append(out, watched.EventOf(u))
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// UpsertWatched handles POST /v1/watched. A missing or future watchedAt is
// stored as today.
func UpsertWatched(gw *syncgw.Gateway, ap *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}

		var req watchedRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		k, err := req.key(uid)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		at, err := watched.ParseWatchedAt(req.WatchedAt)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}

		u, err := gw.Commit(r.Context(), watched.Unit{Key: k, WatchedAt: at})
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		ev := watched.EventOf(u)
		ap.Publish(analytics.SubjectWatchedMarked, "watched_marked", uid, map[string]any{
			"media_type":     string(ev.Kind),
			"tmdb_id":        ev.TitleID,
			"season_number":  ev.Season,
			"episode_number": ev.Episode,
			"watched_at":     ev.WatchedAt,
		})
		api.WriteJSON(w, http.StatusOK, upsertResponse{Status: "ok", WatchedAt: ev.WatchedAt})
	}
}

// DeleteWatched handles DELETE /v1/watched. Deleting an absent key succeeds.
func DeleteWatched(gw *syncgw.Gateway, ap *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}

		var req watchedRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		k, err := req.key(uid)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		if err := gw.Retract(r.Context(), k); err != nil {
			writeError(w, log, rid, err)
			return
		}
		ap.Publish(analytics.SubjectWatchedRemoved, "watched_removed", uid, map[string]any{
			"media_type":     string(k.Kind),
			"tmdb_id":        k.TitleID,
			"season_number":  k.Season,
			"episode_number": k.Episode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}
