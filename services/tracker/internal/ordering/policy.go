package ordering

import (
	"errors"
	"strings"
	"time"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// Choice answers a backfill prompt.
type Choice string

const (
	// ChoiceCurrent commits only the requested episode.
	ChoiceCurrent Choice = "current"
	// ChoiceAll commits the requested episode and every missing earlier one.
	ChoiceAll Choice = "all"
)

var ErrInvalidChoice = errors.New("choice must be current or all")

func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceCurrent, ChoiceAll:
		return c, nil
	}
	return "", ErrInvalidChoice
}

// Pending is a mark held back until the user decides about the earlier
// unwatched episodes. It is not an error. SeriesID is set by the caller
// that owns the listing; MarkWatched leaves it zero.
type Pending struct {
	SeriesID  int64
	Target    watched.EpisodeKey
	Missing   []watched.EpisodeKey
	WatchedAt time.Time
}

// Resolve lists the keys to commit for choice. Every key shares WatchedAt.
func (p Pending) Resolve(choice Choice) ([]watched.EpisodeKey, error) {
	switch choice {
	case ChoiceCurrent:
		return []watched.EpisodeKey{p.Target}, nil
	case ChoiceAll:
		keys := make([]watched.EpisodeKey, 0, len(p.Missing)+1)
		keys = append(keys, p.Missing...)
		return append(keys, p.Target), nil
	}
	return nil, ErrInvalidChoice
}

// Decision is the outcome of MarkWatched: either keys to commit now or a
// prompt. Exactly one of Commit and Pending is set.
type Decision struct {
	Commit    []watched.EpisodeKey
	WatchedAt time.Time
	Pending   *Pending
}

// MarkWatched applies the backfill policy to target. Earlier episodes that
// are not in set turn the mark into a Pending prompt; otherwise target is
// committed on its own.
func MarkWatched(o Order, set watched.EpisodeSet, target watched.EpisodeKey, at time.Time) Decision {
	missing := o.MissingBefore(target, set)
	if len(missing) == 0 {
		return Decision{Commit: []watched.EpisodeKey{target}, WatchedAt: at}
	}
	return Decision{Pending: &Pending{Target: target, Missing: missing, WatchedAt: at}}
}

const dateLayout = "2006-01-02"

// Today is the current calendar day in loc, pinned to 12:00 UTC like a
// bare watchedAt date.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 12, 0, 0, 0, time.UTC)
}

// ClampDate returns today for a zero or future at, at otherwise. Days are
// compared by their UTC calendar date.
func ClampDate(at, today time.Time) time.Time {
	if at.IsZero() {
		return today
	}
	if at.UTC().Format(dateLayout) > today.UTC().Format(dateLayout) {
		return today
	}
	return at
}
