// Package syncgw is the only path between the engine and the persistence
// collaborator. It applies the watchedAt default, wraps collaborator
// failures and folds confirmed results into local state.
package syncgw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/tracksm/services/tracker/internal/ordering"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

// ErrCollaboratorUnavailable wraps every persistence failure. Retrying the
// same operation is always safe.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

// Persistence is the watched-event collaborator.
type Persistence interface {
	List(ctx context.Context, userID string, kind *watched.MediaKind, titleID *int64) ([]watched.Unit, error)
	Upsert(ctx context.Context, u watched.Unit) error
	Delete(ctx context.Context, k watched.Key) error
}

type Gateway struct {
	repo  Persistence
	today func() time.Time
	log   *zap.Logger
}

// New builds a gateway. today returns the current day as a watchedAt value;
// nil means the UTC calendar day.
func New(repo Persistence, today func() time.Time, log *zap.Logger) *Gateway {
	if today == nil {
		today = func() time.Time { return ordering.Today(time.Now(), time.UTC) }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{repo: repo, today: today, log: log}
}

func (g *Gateway) Today() time.Time { return g.today() }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCollaboratorUnavailable, err)
}

// FetchWatched lists raw events. A failure is reported, never degraded:
// without the watched set nothing downstream is meaningful.
func (g *Gateway) FetchWatched(ctx context.Context, userID string, kind *watched.MediaKind, titleID *int64) ([]watched.Event, error) {
	units, err := g.FetchUnits(ctx, userID, kind, titleID)
	if err != nil {
		return nil, err
	}
	out := make([]watched.Event, len(units))
	for i, u := range units {
		out[i] = watched.EventOf(u)
	}
	return out, nil
}

func (g *Gateway) FetchUnits(ctx context.Context, userID string, kind *watched.MediaKind, titleID *int64) ([]watched.Unit, error) {
	units, err := g.repo.List(ctx, userID, kind, titleID)
	if err != nil {
		return nil, unavailable("fetch watched", err)
	}
	return units, nil
}

// Prepare validates u and resolves its date: zero becomes today, a future
// day is clamped to today.
func (g *Gateway) Prepare(u watched.Unit) (watched.Unit, error) {
	u.Key = watched.NormalizeMovie(u.Key)
	if err := watched.Validate(u.Key); err != nil {
		return watched.Unit{}, err
	}
	u.WatchedAt = ordering.ClampDate(u.WatchedAt, g.today())
	return u, nil
}

// Commit upserts one unit and returns it as stored.
func (g *Gateway) Commit(ctx context.Context, u watched.Unit) (watched.Unit, error) {
	u, err := g.Prepare(u)
	if err != nil {
		return watched.Unit{}, err
	}
	if err := g.repo.Upsert(ctx, u); err != nil {
		return watched.Unit{}, unavailable("commit", err)
	}
	return u, nil
}

func (g *Gateway) Retract(ctx context.Context, k watched.Key) error {
	k = watched.NormalizeMovie(k)
	if err := watched.Validate(k); err != nil {
		return err
	}
	if err := g.repo.Delete(ctx, k); err != nil {
		return unavailable("retract", err)
	}
	return nil
}

// BatchResult reports a key-by-key commit. Only Committed keys were stored.
type BatchResult struct {
	SeriesID  int64                `json:"seriesId"`
	WatchedAt time.Time            `json:"-"`
	Committed []watched.EpisodeKey `json:"committed"`
	Failed    []watched.EpisodeKey `json:"failed,omitempty"`
}

// CommitEpisodes stores keys one at a time with a shared date. Failures do
// not roll back earlier successes. The error is non-nil only when nothing
// was committed or the keys were invalid.
func (g *Gateway) CommitEpisodes(ctx context.Context, userID string, seriesID int64, keys []watched.EpisodeKey, at time.Time) (BatchResult, error) {
	res := BatchResult{SeriesID: seriesID, WatchedAt: ordering.ClampDate(at, g.today())}
	units := make([]watched.Unit, 0, len(keys))
	for _, k := range keys {
		u := watched.Unit{Key: watched.EpisodeUnitKey(userID, seriesID, k), WatchedAt: res.WatchedAt}
		if err := watched.Validate(u.Key); err != nil {
			return res, err
		}
		units = append(units, u)
	}

	var lastErr error
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			lastErr = err
			res.Failed = append(res.Failed, u.EpisodeKey())
			continue
		}
		if err := g.repo.Upsert(ctx, u); err != nil {
			g.log.Warn("backfill commit failed",
				zap.Int64("series_id", seriesID),
				zap.String("episode", u.EpisodeKey().String()),
				zap.Error(err),
			)
			lastErr = err
			res.Failed = append(res.Failed, u.EpisodeKey())
			continue
		}
		res.Committed = append(res.Committed, u.EpisodeKey())
	}
	if len(res.Committed) == 0 && lastErr != nil {
		return res, unavailable("commit episodes", lastErr)
	}
	return res, nil
}
