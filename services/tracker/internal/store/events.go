package store

import (
	"context"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// Events exposes a WatchedRepository through the kind/title filter the
// sync gateway works with.
type Events struct {
	Repo WatchedRepository
}

func (e Events) List(ctx context.Context, userID string, kind *watched.MediaKind, titleID *int64) ([]watched.Unit, error) {
	return e.Repo.List(ctx, userID, Filter{Kind: kind, TitleID: titleID})
}

func (e Events) Upsert(ctx context.Context, u watched.Unit) error { return e.Repo.Upsert(ctx, u) }

func (e Events) Delete(ctx context.Context, k watched.Key) error { return e.Repo.Delete(ctx, k) }
