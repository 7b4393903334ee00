// Package ordering computes the total episode order of a series and the
// backfill policy applied when an episode is marked out of order.
package ordering

import (
	"slices"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

// Order is a series' episode listing in ascending (season, episode) order
// with duplicates removed.
type Order []watched.EpisodeKey

// NewOrder sorts and deduplicates keys. Keys with a non-positive season or
// episode are dropped; they cannot be series units.
func NewOrder(keys []watched.EpisodeKey) Order {
	out := make(Order, 0, len(keys))
	for _, k := range keys {
		if k.Season <= 0 || k.Episode <= 0 {
			continue
		}
		out = append(out, k)
	}
	slices.SortFunc(out, watched.EpisodeKey.Compare)
	return slices.Compact(out)
}

func (o Order) Contains(k watched.EpisodeKey) bool {
	_, ok := slices.BinarySearchFunc(o, k, watched.EpisodeKey.Compare)
	return ok
}

// NextUnwatched returns the first episode not in set. ok is false when every
// listed episode is watched.
func (o Order) NextUnwatched(set watched.EpisodeSet) (next watched.EpisodeKey, ok bool) {
	for _, k := range o {
		if !set.Has(k) {
			return k, true
		}
	}
	return watched.EpisodeKey{}, false
}

// PreviousKeysOf returns every listed episode strictly before target.
func (o Order) PreviousKeysOf(target watched.EpisodeKey) []watched.EpisodeKey {
	i, _ := slices.BinarySearchFunc(o, target, watched.EpisodeKey.Compare)
	return slices.Clone(o[:i])
}

// MissingBefore is PreviousKeysOf(target) minus the watched set.
func (o Order) MissingBefore(target watched.EpisodeKey, set watched.EpisodeSet) []watched.EpisodeKey {
	var missing []watched.EpisodeKey
	for _, k := range o.PreviousKeysOf(target) {
		if !set.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}
