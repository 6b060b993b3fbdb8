package models

import (
	"fmt"
	"time"
)

// Gap is a detected missing-data interval bounded by two present bars.
// Start and End are the first and last instants that are themselves missing,
// exclusive of the bordering valid samples. RawDiff is the actual elapsed
// time between the two bordering samples and drives band classification.
type Gap struct {
	ID              string        `json:"id"`
	Start           time.Time     `json:"gap_start"`
	End             time.Time     `json:"gap_end"`
	DurationMinutes int           `json:"gap_duration_min"`
	RawDiff         time.Duration `json:"gap_diff"`
}

// Validate checks the internal consistency of a gap record.
func (g *Gap) Validate() error {
	if g.Start.IsZero() || g.End.IsZero() {
		return fmt.Errorf("gap %s: start and end must be set", g.ID)
	}
	if g.DurationMinutes < 0 {
		return fmt.Errorf("gap %s: duration must be non-negative", g.ID)
	}
	if g.RawDiff <= 0 {
		return fmt.Errorf("gap %s: raw diff must be positive", g.ID)
	}
	return nil
}

// InvalidBlock is a maximal contiguous run of unusable bars at nominal
// cadence, computed from the pre-removal series snapshot. Start and End are
// the inclusive timestamps of the first and last row in the run; Duration is
// the inclusive span (End − Start + one nominal interval).
type InvalidBlock struct {
	ID        string        `json:"id"`
	Start     time.Time     `json:"start"`
	End       time.Time     `json:"end"`
	IsInvalid bool          `json:"is_invalid"`
	RowCount  int           `json:"n_rows"`
	Duration  time.Duration `json:"duration"`
}

// Validate checks the internal consistency of a block record.
func (ib *InvalidBlock) Validate() error {
	if ib.Start.IsZero() || ib.End.IsZero() {
		return fmt.Errorf("block %s: start and end must be set", ib.ID)
	}
	if ib.End.Before(ib.Start) {
		return fmt.Errorf("block %s: end precedes start", ib.ID)
	}
	if ib.RowCount < 1 {
		return fmt.Errorf("block %s: must contain at least one row", ib.ID)
	}
	return nil
}
