package watched

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// StoredLayout is the persisted and wire form of watchedAt.
const StoredLayout = "2006-01-02 15:04:05"

const dateLayout = "2006-01-02"

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ParseWatchedAt accepts RFC3339, a bare date or StoredLayout. A bare date is
// pinned to 12:00 UTC so it survives any timezone shift of at most 12h.
// Empty input yields the zero time.
func ParseWatchedAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	if t, err := time.Parse(StoredLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, invalid("watchedAt", fmt.Sprintf("%q is not RFC3339, YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", raw))
}

func FormatWatchedAt(t time.Time) string {
	return t.UTC().Format(StoredLayout)
}

var fallbackLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC850, time.ANSIC}

// DateKey truncates a raw watchedAt to YYYY-MM-DD. A leading date is used as
// written, without timezone conversion. Unparseable input returns false.
func DateKey(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if p := datePrefix.FindString(raw); p != "" {
		if _, err := time.Parse(dateLayout, p); err != nil {
			return "", false
		}
		return p, true
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(dateLayout), true
		}
	}
	return "", false
}

// Day truncates t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
