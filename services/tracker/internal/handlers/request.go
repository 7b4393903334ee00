package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/tracksm/internal/platform/api"
	"github.com/example/tracksm/internal/platform/auth"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads up to maxRequestBodyBytes from r.Body and decodes JSON into dst.
// On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return false
	}
	return true
}

// decodeOptionalJSON treats an empty body as the zero value, including a
// chunked one whose length is unknown up front.
func decodeOptionalJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return true
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return false
	}
	return true
}

// requireUser reads the id injected by auth.RequireUser.
func requireUser(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "AUTH_MISSING", "Missing auth", rid)
		return "", false
	}
	return uid, true
}

func positiveParam(w http.ResponseWriter, r *http.Request, rid, name string) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		api.BadRequest(w, "INVALID_"+strings.ToUpper(name), name+" must be a positive integer", rid, map[string]any{"field": name})
		return 0, false
	}
	return n, true
}

func episodeParams(w http.ResponseWriter, r *http.Request, rid string) (watched.EpisodeKey, bool) {
	season, ok := positiveParam(w, r, rid, "season")
	if !ok {
		return watched.EpisodeKey{}, false
	}
	episode, ok := positiveParam(w, r, rid, "episode")
	if !ok {
		return watched.EpisodeKey{}, false
	}
	return watched.EpisodeKey{Season: int(season), Episode: int(episode)}, true
}

type dateRequest struct {
	WatchedAt string `json:"watchedAt"`
}

// parse reads the optional date; the zero time means "today".
func (d dateRequest) parse() (time.Time, error) {
	return watched.ParseWatchedAt(d.WatchedAt)
}

// optionalInt parses a query value; empty means no filter.
func optionalInt(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil, strconv.ErrSyntax
	}
	return &n, nil
}
