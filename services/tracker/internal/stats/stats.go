// Package stats buckets watched events by calendar day and lays them out as
// a month grid with per-day top items and heatmap intensity.
package stats

import (
	"cmp"
	"slices"
	"strconv"
	"time"

	"github.com/example/tracksm/services/tracker/internal/watched"
)

const (
	GridCells = 42
	TopPerDay = 3

	dateLayout   = "2006-01-02"
	minIntensity = 0.2
)

// Item identifies a title inside a day bucket.
type Item struct {
	Kind    watched.MediaKind `json:"mediaType"`
	TitleID int64             `json:"tmdbId"`
}

// String renders the "kind:id" media key.
func (i Item) String() string {
	return string(i.Kind) + ":" + strconv.FormatInt(i.TitleID, 10)
}

type itemCount struct {
	item  Item
	count int
	first int
}

// DayBucket aggregates every event truncated to Date.
type DayBucket struct {
	Date       string
	TotalViews int
	items      map[Item]*itemCount
}

// Top returns up to n items by count, ties broken by first appearance.
func (b *DayBucket) Top(n int) []Item {
	if b == nil || n <= 0 {
		return nil
	}
	counts := make([]*itemCount, 0, len(b.items))
	for _, c := range b.items {
		counts = append(counts, c)
	}
	slices.SortFunc(counts, func(a, b *itemCount) int {
		return cmp.Or(cmp.Compare(b.count, a.count), cmp.Compare(a.first, b.first))
	})
	out := make([]Item, 0, min(n, len(counts)))
	for _, c := range counts[:min(n, len(counts))] {
		out = append(out, c.item)
	}
	return out
}

// Buckets maps a YYYY-MM-DD key to its bucket.
type Buckets map[string]*DayBucket

// Aggregate buckets events by day. An event without watchedAt is grouped
// under today; malformed dates are left out of every bucket.
func Aggregate(events []watched.Event, today string) Buckets {
	out := make(Buckets)
	for seq, ev := range events {
		raw := ev.WatchedAt
		if raw == "" {
			raw = today
		}
		key, ok := watched.DateKey(raw)
		if !ok {
			continue
		}
		b := out[key]
		if b == nil {
			b = &DayBucket{Date: key, items: make(map[Item]*itemCount)}
			out[key] = b
		}
		b.TotalViews++
		it := Item{Kind: ev.Kind, TitleID: ev.TitleID}
		if c, ok := b.items[it]; ok {
			c.count++
		} else {
			b.items[it] = &itemCount{item: it, count: 1, first: seq}
		}
	}
	return out
}

type Cell struct {
	Date       string  `json:"date"`
	Day        int     `json:"day"`
	InMonth    bool    `json:"inMonth"`
	Future     bool    `json:"future"`
	TotalViews int     `json:"totalViews"`
	Top        []Item  `json:"top"`
	Intensity  float64 `json:"intensity"`
}

type Grid struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	MaxViews int    `json:"maxViews"`
	Cells    []Cell `json:"cells"`
}

// GridStart is the Sunday on or before the first of the month.
func GridStart(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 12, 0, 0, 0, time.UTC)
	return first.AddDate(0, 0, -int(first.Weekday()))
}

// MonthGrid lays out 42 cells from GridStart. The grid is always rebuilt
// from scratch. Days after today are flagged Future; today may be empty.
func MonthGrid(b Buckets, year int, month time.Month, today string) Grid {
	first := time.Date(year, month, 1, 12, 0, 0, 0, time.UTC)
	start := GridStart(year, month)
	g := Grid{Year: first.Year(), Month: int(first.Month()), Cells: make([]Cell, GridCells)}

	for i := range GridCells {
		d := start.AddDate(0, 0, i)
		key := d.Format(dateLayout)
		c := Cell{
			Date:    key,
			Day:     d.Day(),
			InMonth: d.Month() == first.Month(),
			Future:  today != "" && key > today,
		}
		if bucket := b[key]; bucket != nil {
			c.TotalViews = bucket.TotalViews
			c.Top = bucket.Top(TopPerDay)
		}
		g.MaxViews = max(g.MaxViews, c.TotalViews)
		g.Cells[i] = c
	}
	for i := range g.Cells {
		g.Cells[i].Intensity = Intensity(g.Cells[i].TotalViews, g.MaxViews)
	}
	return g
}

// Intensity maps views onto [0.2, 1] relative to maxViews; empty days are 0.
func Intensity(views, maxViews int) float64 {
	if views <= 0 || maxViews <= 0 {
		return 0
	}
	ratio := min(float64(views)/float64(maxViews), 1)
	return minIntensity + (1-minIntensity)*ratio
}
