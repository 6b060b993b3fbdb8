// Package session implements calendar-based trading-session filtering.
package session

import (
	"log/slog"
	"time"

	"github.com/fxdata/go-series-cleaner/internal/models"
)

// Calendar decides whether an instant falls inside an active trading window.
type Calendar interface {
	Active(t time.Time) bool
}

// FXWeek is the default FX session calendar in UTC: continuously active from
// Sunday 22:00 through Friday 22:00. The 22:00 boundary minute is inclusive
// on both the Friday close and the Sunday open, matching the data the
// original datasets were filtered with.
type FXWeek struct{}

// Active reports whether t falls inside the FX trading week. t must already
// be normalized to UTC.
func (FXWeek) Active(t time.Time) bool {
	weekday := t.Weekday()
	hour := t.Hour()
	minute := t.Minute()

	switch weekday {
	case time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
		return true
	case time.Friday:
		return hour < 22 || (hour == 22 && minute == 0)
	case time.Sunday:
		return hour >= 22
	default: // Saturday
		return false
	}
}

// Filter retains only the bars whose timestamp is inside the calendar's
// active window, returning the filtered series and the number removed.
func Filter(series models.Series, cal Calendar, logger *slog.Logger) (models.Series, int) {
	out := make(models.Series, 0, len(series))
	for _, bar := range series {
		if cal.Active(bar.Timestamp) {
			out = append(out, bar)
		}
	}

	removed := len(series) - len(out)
	if removed > 0 && logger != nil {
		logger.Info("removed out-of-session rows", "count", removed)
	}
	return out, removed
}
