package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/tracksm/internal/platform/api"
	"github.com/example/tracksm/internal/platform/httpserver"
	"github.com/example/tracksm/services/tracker/internal/engine"
	"github.com/example/tracksm/services/tracker/internal/ordering"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

// GetProgress handles GET /v1/progress
func GetProgress(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		view, err := eng.Progress(r.Context(), uid)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, view)
	}
}

// GetSeries handles GET /v1/series/{id}
func GetSeries(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		id, ok := positiveParam(w, r, rid, "id")
		if !ok {
			return
		}
		view, err := eng.SeriesState(r.Context(), uid, id)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, view)
	}
}

// MarkNext handles POST /v1/series/{id}/next
func MarkNext(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		id, ok := positiveParam(w, r, rid, "id")
		if !ok {
			return
		}
		writeMark(w, log, rid)(eng.MarkNext(r.Context(), uid, id))
	}
}

type episodeOp func(eng *engine.Engine, r *http.Request, uid string, seriesID int64, ep watched.EpisodeKey, at time.Time) (engine.MarkResult, error)

// episodeHandler parses {id}/{season}/{episode} and an optional
// {"watchedAt"} body, then runs op.
func episodeHandler(eng *engine.Engine, log *zap.Logger, op episodeOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		id, ok := positiveParam(w, r, rid, "id")
		if !ok {
			return
		}
		ep, ok := episodeParams(w, r, rid)
		if !ok {
			return
		}
		var req dateRequest
		if !decodeOptionalJSON(w, r, rid, &req) {
			return
		}
		at, err := req.parse()
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		writeMark(w, log, rid)(op(eng, r, uid, id, ep, at))
	}
}

// MarkEpisode handles POST /v1/series/{id}/episodes/{season}/{episode}/mark
func MarkEpisode(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return episodeHandler(eng, log, func(eng *engine.Engine, r *http.Request, uid string, id int64, ep watched.EpisodeKey, at time.Time) (engine.MarkResult, error) {
		return eng.MarkEpisode(r.Context(), uid, id, ep, at)
	})
}

// ToggleEpisode handles POST /v1/series/{id}/episodes/{season}/{episode}/toggle
func ToggleEpisode(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return episodeHandler(eng, log, func(eng *engine.Engine, r *http.Request, uid string, id int64, ep watched.EpisodeKey, at time.Time) (engine.MarkResult, error) {
		return eng.ToggleEpisode(r.Context(), uid, id, ep, at)
	})
}

// SetEpisodeDate handles PUT /v1/series/{id}/episodes/{season}/{episode}/date
func SetEpisodeDate(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return episodeHandler(eng, log, func(eng *engine.Engine, r *http.Request, uid string, id int64, ep watched.EpisodeKey, at time.Time) (engine.MarkResult, error) {
		return eng.SetEpisodeDate(r.Context(), uid, id, ep, at)
	})
}

type resolveRequest struct {
	Choice string `json:"choice"`
}

// ResolvePending handles POST /v1/pending/{id}/resolve
func ResolvePending(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		var req resolveRequest
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		writeMark(w, log, rid)(eng.ResolvePending(r.Context(), uid, id, ordering.Choice(req.Choice)))
	}
}

// DismissPending handles DELETE /v1/pending/{id}
func DismissPending(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		writeMark(w, log, rid)(eng.DismissPending(r.Context(), uid, id))
	}
}

// ToggleMovie handles POST /v1/movies/{id}/toggle
func ToggleMovie(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		id, ok := positiveParam(w, r, rid, "id")
		if !ok {
			return
		}
		writeMark(w, log, rid)(eng.ToggleMovie(r.Context(), uid, id))
	}
}

// GetCalendar handles GET /v1/stats/calendar?month=YYYY-MM. The month
// defaults to the current one.
func GetCalendar(eng *engine.Engine, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		month := eng.Today()
		if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
			m, err := time.Parse("2006-01", raw)
			if err != nil {
				api.BadRequest(w, "INVALID_MONTH", "month must be YYYY-MM", rid, map[string]any{"field": "month"})
				return
			}
			month = m
		}
		view, err := eng.Calendar(r.Context(), uid, month.Year(), month.Month())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, view)
	}
}

// writeMark returns a sink for an engine result so handlers can pass the
// call's two return values straight through.
func writeMark(w http.ResponseWriter, log *zap.Logger, rid string) func(engine.MarkResult, error) {
	return func(res engine.MarkResult, err error) {
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, res)
	}
}
