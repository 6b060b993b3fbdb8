package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxdata/go-series-cleaner/internal/models"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2024-03-04T10:15:00Z", time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC), true},
		{"rfc3339 with offset", "2024-03-04T12:15:00+02:00", time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC), true},
		{"space separated", "2024-03-04 10:15:00", time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC), true},
		{"minute precision", "2024-03-04 10:15", time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC), true},
		{"date only", "2024-03-04", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"epoch seconds", "1709547300", time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC), true},
		{"epoch millis", "1709547300000", time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC), true},
		{"garbage", "not-a-time", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
			}
		})
	}
}

func TestNormalizeSortsAndDrops(t *testing.T) {
	rows := []models.RawBar{
		{Time: "2024-03-04 10:02:00", Close: "1.2"},
		{Time: "bogus", Close: "9.9"},
		{Time: "2024-03-04 10:00:00", Close: "1.0"},
		{Time: "2024-03-04 10:01:00", Close: "1.1"},
	}

	series, dropped := New(nil).Normalize(rows)

	assert.Equal(t, 1, dropped)
	require.Len(t, series, 3)
	assert.Equal(t, "1.0", series[0].Close)
	assert.Equal(t, "1.1", series[1].Close)
	assert.Equal(t, "1.2", series[2].Close)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Timestamp.Before(series[i].Timestamp))
	}
}

func TestDeduplicateKeepsLastInFileOrder(t *testing.T) {
	rows := []models.RawBar{
		{Time: "2024-03-04 10:00:00", Close: "first"},
		{Time: "2024-03-04 10:01:00", Close: "only"},
		{Time: "2024-03-04 10:00:00", Close: "second"},
		{Time: "2024-03-04 10:00:00", Close: "third"},
	}

	n := New(nil)
	series, _ := n.Normalize(rows)
	deduped, removed := n.Deduplicate(series)

	assert.Equal(t, 2, removed)
	require.Len(t, deduped, 2)
	// Stable sort keeps file order within the duplicate group, so the last
	// write for 10:00 survives.
	assert.Equal(t, "third", deduped[0].Close)
	assert.Equal(t, "only", deduped[1].Close)
}

func TestNormalizeIdempotent(t *testing.T) {
	rows := []models.RawBar{
		{Time: "2024-03-04 10:01:00", Close: "1.1"},
		{Time: "2024-03-04 10:00:00", Close: "1.0"},
		{Time: "2024-03-04 10:00:00", Close: "1.05"},
	}

	n := New(nil)
	once, _ := n.Normalize(rows)
	once, _ = n.Deduplicate(once)

	// Run the normalizer again over its own output.
	again := make([]models.RawBar, len(once))
	for i, b := range once {
		again[i] = models.RawBar{
			Time:  b.Timestamp.Format(time.RFC3339),
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		}
	}
	twice, dropped := n.Normalize(again)
	twice, removed := n.Deduplicate(twice)

	assert.Zero(t, dropped)
	assert.Zero(t, removed)
	assert.Equal(t, once, twice)
}

func TestDeduplicateEmpty(t *testing.T) {
	out, removed := New(nil).Deduplicate(nil)
	assert.Empty(t, out)
	assert.Zero(t, removed)
}
