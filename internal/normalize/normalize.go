// Package normalize implements the time normalizer: timestamp parsing to
// UTC, stable chronological sorting, and duplicate-timestamp removal.
package normalize

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fxdata/go-series-cleaner/internal/models"
)

// timeLayouts are tried in order for string timestamps without an explicit
// offset; naive timestamps are assumed to be UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalizer parses and orders raw rows into a Series.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a time normalizer.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger.With("component", "normalizer")}
}

// ParseTimestamp converts a raw time field to a UTC instant. It accepts
// RFC3339 variants, space-separated datetimes, date-only values, and epoch
// seconds or milliseconds. The second return value reports success.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if isDigits(raw) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		// 13-digit values are epoch milliseconds, shorter ones seconds.
		if len(raw) >= 13 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Normalize parses every raw row's time field, drops rows whose timestamp
// cannot be parsed, and returns the surviving bars sorted chronologically.
// The sort is stable so that rows sharing a timestamp keep their original
// file order, which the later keep-last deduplication relies on.
func (n *Normalizer) Normalize(rows []models.RawBar) (models.Series, int) {
	series := make(models.Series, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		ts, ok := ParseTimestamp(row.Time)
		if !ok {
			dropped++
			continue
		}
		series = append(series, models.Bar{
			Timestamp: ts,
			Open:      strings.TrimSpace(row.Open),
			High:      strings.TrimSpace(row.High),
			Low:       strings.TrimSpace(row.Low),
			Close:     strings.TrimSpace(row.Close),
		})
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	if dropped > 0 {
		n.logger.Info("dropped rows with unparseable timestamps", "count", dropped)
	}
	return series, dropped
}

// Deduplicate removes duplicate timestamps from a sorted series, keeping
// the last occurrence of each time-adjacent duplicate group. On the stably
// sorted view "last" means last in original file order, so later writes win.
func (n *Normalizer) Deduplicate(series models.Series) (models.Series, int) {
	if len(series) == 0 {
		return series, 0
	}

	out := make(models.Series, 0, len(series))
	for i := 0; i < len(series); i++ {
		if i+1 < len(series) && series[i+1].Timestamp.Equal(series[i].Timestamp) {
			continue
		}
		out = append(out, series[i])
	}

	removed := len(series) - len(out)
	if removed > 0 {
		n.logger.Info("removed duplicated timestamps", "count", removed)
	}
	return out, removed
}
