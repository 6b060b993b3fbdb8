// Package validator implements the row validator: the OHLC sanity filter and
// stale-quote run removal. The two sub-steps are order dependent — sanity
// first, then stale runs — and both recover row-level defects by filtering
// and counting, never by failing the run.
package validator

import (
	"log/slog"

	"github.com/fxdata/go-series-cleaner/internal/models"
)

// RowValidator removes structurally invalid rows and stale-quote runs.
type RowValidator struct {
	staleRunLength int
	logger         *slog.Logger
}

// New creates a row validator. staleRunLength is the minimum number of
// consecutive identical closes that marks a run as stale.
func New(staleRunLength int, logger *slog.Logger) *RowValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RowValidator{
		staleRunLength: staleRunLength,
		logger:         logger.With("component", "row_validator"),
	}
}

// SanityFilter removes rows failing the OHLC sanity predicate: any present
// field zero or negative, or the candle logically inconsistent. Rows with
// missing values are retained; the invalid-block detector judges those on
// its own snapshot.
func (v *RowValidator) SanityFilter(series models.Series) (models.Series, int) {
	out := make(models.Series, 0, len(series))
	for i := range series {
		if series[i].FailsSanity() {
			continue
		}
		out = append(out, series[i])
	}

	removed := len(series) - len(out)
	if removed > 0 {
		v.logger.Info("removed rows failing OHLC sanity checks", "count", removed)
	}
	return out, removed
}

// RemoveStaleRuns detects maximal runs of consecutive identical close prices
// and removes every member of runs whose length reaches the configured
// threshold. Equality is strict decimal equality; a missing close never
// compares equal, so it always starts a new run.
func (v *RowValidator) RemoveStaleRuns(series models.Series) (models.Series, int) {
	if len(series) == 0 || v.staleRunLength <= 1 {
		return series, 0
	}

	// Single linear scan over run boundaries; each run is [start, end).
	out := make(models.Series, 0, len(series))
	removed := 0
	start := 0
	for i := 1; i <= len(series); i++ {
		if i < len(series) && series[i].CloseEquals(&series[i-1]) {
			continue
		}
		runLen := i - start
		if runLen >= v.staleRunLength {
			removed += runLen
		} else {
			out = append(out, series[start:i]...)
		}
		start = i
	}

	if removed > 0 {
		v.logger.Info("removed stale-quote rows",
			"count", removed,
			"min_run_length", v.staleRunLength)
	}
	return out, removed
}
