package catalog

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/tracksm/internal/platform/tracing"
	"github.com/example/tracksm/services/tracker/internal/watched"
)

// Batcher lifts the MaxBatch cap of summary lookups by splitting the id list
// into chunks fetched concurrently. A failed chunk is logged and its ids are
// left unresolved; the other chunks still count.
type Batcher struct {
	Provider
	Size int
	Log  *zap.Logger
}

func NewBatcher(p Provider, log *zap.Logger) *Batcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Batcher{Provider: p, Size: MaxBatch, Log: log}
}

func (b *Batcher) SeriesSummaries(ctx context.Context, ids []int64) ([]SeriesSummary, error) {
	return batch(ctx, b, watched.Series, ids, b.Provider.SeriesSummaries)
}

func (b *Batcher) MovieSummaries(ctx context.Context, ids []int64) ([]MovieSummary, error) {
	return batch(ctx, b, watched.Movie, ids, b.Provider.MovieSummaries)
}

// Chunks splits ids into consecutive runs of at most size.
func Chunks(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = MaxBatch
	}
	var out [][]int64
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}

func batch[T any](ctx context.Context, b *Batcher, kind watched.MediaKind, ids []int64, fetch func(context.Context, []int64) ([]T, error)) ([]T, error) {
	ids = CleanIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	chunks := Chunks(ids, b.Size)

	ctx, span := tracing.Tracer("catalog").Start(ctx, "catalog.batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("media_kind", string(kind)),
		attribute.Int("ids", len(ids)),
		attribute.Int("chunks", len(chunks)),
	)

	results := make([][]T, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			res, err := fetch(ctx, chunk)
			if err != nil {
				b.Log.Warn("catalog chunk failed",
					zap.String("kind", string(kind)),
					zap.Int("chunk", i),
					zap.Int("size", len(chunk)),
					zap.Error(err),
				)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []T
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}
