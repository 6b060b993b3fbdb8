// Package gaps provides missing-period detection and invalid-block
// segmentation for cleaned minute series. The gap detector classifies
// missing intervals into configurable duration bands; the block detector
// scans a pre-removal snapshot for contiguous runs of unusable rows.
package gaps

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fxdata/go-series-cleaner/internal/models"
)

// Band is a half-open classification interval: a gap belongs to the band
// when Min < diff <= Max.
type Band struct {
	Min time.Duration
	Max time.Duration
}

// Contains reports whether diff falls inside the band.
func (b Band) Contains(diff time.Duration) bool {
	return diff > b.Min && diff <= b.Max
}

// Detector finds missing periods and invalid blocks for a fixed nominal
// sampling interval.
type Detector struct {
	interval time.Duration
	logger   *slog.Logger
}

// NewDetector creates a detector for the given nominal interval.
func NewDetector(interval time.Duration, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		interval: interval,
		logger:   logger.With("component", "gap_detector"),
	}
}

// Detect scans adjacent timestamp pairs of a sorted, deduplicated series and
// emits one Gap for every pair whose elapsed time falls inside the band.
// Gap bounds exclude the bordering present samples: the gap starts one
// nominal interval after the previous bar and ends one interval before the
// next. The missing-sample count floors the raw diff, so a partial-interval
// overhang never inflates it.
func (d *Detector) Detect(series models.Series, band Band) []models.Gap {
	var gaps []models.Gap
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Timestamp
		next := series[i].Timestamp
		diff := next.Sub(prev)
		if !band.Contains(diff) {
			continue
		}

		missing := int(diff/d.interval) - 1
		if missing < 0 {
			missing = 0
		}
		gaps = append(gaps, models.Gap{
			ID:              recordID("gap", prev, next),
			Start:           prev.Add(d.interval),
			End:             next.Add(-d.interval),
			DurationMinutes: missing,
			RawDiff:         diff,
		})
	}

	d.logger.Debug("gap detection completed",
		"band_min", band.Min,
		"band_max", band.Max,
		"gaps_found", len(gaps))
	return gaps
}

// CountBreaksBeyond counts adjacent pairs whose elapsed time exceeds the
// given bound. Such structural breaks (broker migrations, decommissioned
// feeds) fall outside every gap band and are reported as a count only.
func (d *Detector) CountBreaksBeyond(series models.Series, bound time.Duration) int {
	breaks := 0
	for i := 1; i < len(series); i++ {
		if series[i].Timestamp.Sub(series[i-1].Timestamp) > bound {
			breaks++
		}
	}
	return breaks
}

// InvalidBlocks segments the pre-removal snapshot into maximal runs of rows
// sharing the same usability state at nominal cadence. A new block starts
// whenever the UTC calendar day changes, the step to the previous row is not
// exactly the nominal interval, or the row's invalidity flag flips. Only
// invalid blocks whose inclusive duration reaches minDuration are returned,
// in nondecreasing start order.
func (d *Detector) InvalidBlocks(snapshot models.Series, minDuration time.Duration) []models.InvalidBlock {
	if len(snapshot) == 0 {
		return nil
	}

	var blocks []models.InvalidBlock
	flush := func(start, end int, invalid bool) {
		if !invalid {
			return
		}
		first := snapshot[start].Timestamp
		last := snapshot[end].Timestamp
		duration := last.Sub(first) + d.interval
		if duration < minDuration {
			return
		}
		blocks = append(blocks, models.InvalidBlock{
			ID:        recordID("block", first, last),
			Start:     first,
			End:       last,
			IsInvalid: true,
			RowCount:  end - start + 1,
			Duration:  duration,
		})
	}

	start := 0
	invalid := snapshot[0].Unusable()
	for i := 1; i < len(snapshot); i++ {
		rowInvalid := snapshot[i].Unusable()
		if d.newBlock(&snapshot[i-1], &snapshot[i], invalid, rowInvalid) {
			flush(start, i-1, invalid)
			start = i
			invalid = rowInvalid
		}
	}
	flush(start, len(snapshot)-1, invalid)

	d.logger.Debug("invalid-block detection completed",
		"rows", len(snapshot),
		"blocks_found", len(blocks))
	return blocks
}

// newBlock evaluates the three boundary predicates between adjacent rows.
func (d *Detector) newBlock(prev, cur *models.Bar, prevInvalid, curInvalid bool) bool {
	if !sameUTCDay(prev.Timestamp, cur.Timestamp) {
		return true
	}
	if cur.Timestamp.Sub(prev.Timestamp) != d.interval {
		return true
	}
	return prevInvalid != curInvalid
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// recordID builds a deterministic-prefix identifier with a short random
// suffix, the same shape the gap records carry downstream.
func recordID(kind string, start, end time.Time) string {
	id := fmt.Sprintf("%s_%d_%d_%s", kind, start.Unix(), end.Unix(), uuid.New().String()[:8])
	return strings.ReplaceAll(id, " ", "_")
}
