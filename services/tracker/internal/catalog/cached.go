package catalog

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

type TTLs struct {
	Summary  time.Duration
	Episodes time.Duration
	Search   time.Duration
}

func DefaultTTLs(summary time.Duration) TTLs {
	if summary <= 0 {
		summary = 30 * time.Minute
	}
	return TTLs{Summary: summary, Episodes: time.Hour, Search: 10 * time.Minute}
}

// Cached decorates a Provider with a Cache. Concurrent misses on the same
// key share one upstream call. Cache failures are logged and treated as misses.
type Cached struct {
	next  Provider
	cache Cache
	ttl   TTLs
	log   *zap.Logger
	sf    singleflight.Group
}

func NewCached(next Provider, cache Cache, ttl TTLs, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, ttl: ttl, log: log}
}

func SummaryKey(kind watched.MediaKind, id int64) string {
	return string(kind) + ":summary:" + strconv.FormatInt(id, 10)
}

func EpisodesKey(seriesID int64) string { return "tv:episodes:" + strconv.FormatInt(seriesID, 10) }

func (c *Cached) SeriesSummaries(ctx context.Context, ids []int64) ([]SeriesSummary, error) {
	return cachedEach(ctx, c, watched.Series, ids, func(s SeriesSummary) int64 { return s.ID }, c.next.SeriesSummaries)
}

func (c *Cached) MovieSummaries(ctx context.Context, ids []int64) ([]MovieSummary, error) {
	return cachedEach(ctx, c, watched.Movie, ids, func(m MovieSummary) int64 { return m.ID }, c.next.MovieSummaries)
}

func (c *Cached) Episodes(ctx context.Context, seriesID int64) ([]Episode, error) {
	return cachedOne(ctx, c, EpisodesKey(seriesID), c.ttl.Episodes, func(ctx context.Context) ([]Episode, error) {
		return c.next.Episodes(ctx, seriesID)
	})
}

func (c *Cached) Search(ctx context.Context, query string) ([]SearchResult, error) {
	key := "search:" + strings.ToLower(strings.TrimSpace(query))
	return cachedOne(ctx, c, key, c.ttl.Search, func(ctx context.Context) ([]SearchResult, error) {
		return c.next.Search(ctx, query)
	})
}

func (c *Cached) Details(ctx context.Context, kind watched.MediaKind, id int64) (Details, error) {
	key := string(kind) + ":details:" + strconv.FormatInt(id, 10)
	return cachedOne(ctx, c, key, c.ttl.Summary, func(ctx context.Context) (Details, error) {
		return c.next.Details(ctx, kind, id)
	})
}

func (c *Cached) Person(ctx context.Context, id int64) (Person, error) {
	key := "person:" + strconv.FormatInt(id, 10)
	return cachedOne(ctx, c, key, c.ttl.Summary, func(ctx context.Context) (Person, error) {
		return c.next.Person(ctx, id)
	})
}

func (c *Cached) lookup(ctx context.Context, key string, dest any) bool {
	ok, err := c.cache.Get(ctx, key, dest)
	if err != nil {
		c.log.Warn("catalog cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (c *Cached) store(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := c.cache.Set(ctx, key, v, ttl); err != nil {
		c.log.Warn("catalog cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func cachedOne[T any](ctx context.Context, c *Cached, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var v T
	if c.lookup(ctx, key, &v) {
		return v, nil
	}
	res, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.store(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// cachedEach serves hits from the cache and fetches the misses in one call.
// The result keeps the order of ids; unresolved ids are omitted.
func cachedEach[T any](ctx context.Context, c *Cached, kind watched.MediaKind, ids []int64, idOf func(T) int64, fetch func(context.Context, []int64) ([]T, error)) ([]T, error) {
	ids = CleanIDs(ids)
	found := make(map[int64]T, len(ids))
	var misses []int64
	for _, id := range ids {
		var v T
		if c.lookup(ctx, SummaryKey(kind, id), &v) {
			found[id] = v
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		parts := make([]string, len(misses))
		for i, id := range misses {
			parts[i] = strconv.FormatInt(id, 10)
		}
		res, err, _ := c.sf.Do(string(kind)+":summaries:"+strings.Join(parts, ","), func() (any, error) {
			return fetch(ctx, misses)
		})
		if err != nil {
			return nil, err
		}
		for _, v := range res.([]T) {
			found[idOf(v)] = v
			c.store(ctx, SummaryKey(kind, idOf(v)), v, c.ttl.Summary)
		}
	}

	out := make([]T, 0, len(found))
	for _, id := range ids {
		if v, ok := found[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}
