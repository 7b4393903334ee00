// Package watched defines the watched-unit model: the key that identifies a
// viewing record, its validation rules and an in-memory upsert-by-key set.
package watched

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type MediaKind string

const (
	Movie  MediaKind = "movie"
	Series MediaKind = "tv"
)

var ErrInvalidUnitKey = errors.New("invalid unit key")

// ValidationError names the offending field. It matches ErrInvalidUnitKey
// under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid unit key: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidUnitKey }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case Movie:
		return Movie, nil
	case Series:
		return Series, nil
	}
	return "", invalid("mediaType", "must be movie or tv")
}

// EpisodeKey positions an episode inside a series. The zero value is the
// movie sentinel.
type EpisodeKey struct {
	Season  int `json:"seasonNumber"`
	Episode int `json:"episodeNumber"`
}

func (k EpisodeKey) String() string {
	return strconv.Itoa(k.Season) + ":" + strconv.Itoa(k.Episode)
}

// Less orders episodes ascending by (season, episode).
func (k EpisodeKey) Less(o EpisodeKey) bool {
	if k.Season != o.Season {
		return k.Season < o.Season
	}
	return k.Episode < o.Episode
}

// Compare returns -1, 0 or +1 for use with slices.SortFunc.
func (k EpisodeKey) Compare(o EpisodeKey) int {
	switch {
	case k.Less(o):
		return -1
	case o.Less(k):
		return 1
	}
	return 0
}

// Key identifies a watched unit. Two units with equal keys are the same fact.
type Key struct {
	UserID  string
	Kind    MediaKind
	TitleID int64
	Season  int
	Episode int
}

func (k Key) EpisodeKey() EpisodeKey {
	return EpisodeKey{Season: k.Season, Episode: k.Episode}
}

// MovieKey builds the sentinel key of a movie.
func MovieKey(userID string, titleID int64) Key {
	return Key{UserID: userID, Kind: Movie, TitleID: titleID}
}

func EpisodeUnitKey(userID string, titleID int64, ep EpisodeKey) Key {
	return Key{UserID: userID, Kind: Series, TitleID: titleID, Season: ep.Season, Episode: ep.Episode}
}

// Validate rejects keys that cannot be persisted. Movies must carry (0,0);
// series episodes need positive season and episode numbers.
func Validate(k Key) error {
	if strings.TrimSpace(k.UserID) == "" {
		return invalid("userId", "is required")
	}
	if k.TitleID <= 0 {
		return invalid("tmdbId", "must be positive")
	}
	switch k.Kind {
	case Movie:
		if k.Season != 0 || k.Episode != 0 {
			return invalid("seasonNumber/episodeNumber", "must be 0 for a movie")
		}
	case Series:
		if k.Season <= 0 {
			return invalid("seasonNumber", "must be positive for a series episode")
		}
		if k.Episode <= 0 {
			return invalid("episodeNumber", "must be positive for a series episode")
		}
	default:
		return invalid("mediaType", "must be movie or tv")
	}
	return nil
}

// NormalizeMovie forces the sentinel on movie keys and leaves others as is.
func NormalizeMovie(k Key) Key {
	if k.Kind == Movie {
		k.Season, k.Episode = 0, 0
	}
	return k
}

// Unit is a persisted watched fact. A zero WatchedAt means "not specified".
type Unit struct {
	Key
	WatchedAt time.Time
}

// Event is a raw watched record as exchanged with the persistence collaborator.
type Event struct {
	Kind      MediaKind `json:"mediaType"`
	TitleID   int64     `json:"tmdbId"`
	Season    int       `json:"seasonNumber"`
	Episode   int       `json:"episodeNumber"`
	WatchedAt string    `json:"watchedAt,omitempty"`
}

func (e Event) EpisodeKey() EpisodeKey {
	return EpisodeKey{Season: e.Season, Episode: e.Episode}
}

// EventOf renders a unit in wire form.
func EventOf(u Unit) Event {
	ev := Event{Kind: u.Kind, TitleID: u.TitleID, Season: u.Season, Episode: u.Episode}
	if !u.WatchedAt.IsZero() {
		ev.WatchedAt = FormatWatchedAt(u.WatchedAt)
	}
	return ev
}
