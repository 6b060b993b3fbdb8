// Package pipeline sequences the cleaning and gap-classification stages in
// their fixed order and assembles the per-series result bundle. The stages
// are order dependent: normalize, optional session filter, deduplicate,
// sanity filter, stale-run removal, then the two detectors — gap detection
// over the final clean series and invalid-block detection over the
// post-dedup, pre-removal snapshot. The two snapshots are distinct on
// purpose; the detectors never share mutable series state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxdata/go-series-cleaner/internal/config"
	cerrors "github.com/fxdata/go-series-cleaner/internal/errors"
	"github.com/fxdata/go-series-cleaner/internal/gaps"
	"github.com/fxdata/go-series-cleaner/internal/models"
	"github.com/fxdata/go-series-cleaner/internal/normalize"
	"github.com/fxdata/go-series-cleaner/internal/session"
	"github.com/fxdata/go-series-cleaner/internal/validator"
)

// State is the terminal state of a pipeline run.
type State string

const (
	// StateDone marks a completed run, including runs with empty results.
	StateDone State = "done"
	// StateAborted marks a run stopped by a schema defect: no usable time
	// series could be formed from the input at all.
	StateAborted State = "aborted"
)

// Config carries the resolved settings for one pipeline instance. It is
// passed in explicitly; the pipeline holds no process-wide state.
type Config struct {
	Interval         time.Duration
	ShortBand        gaps.Band
	LongBand         gaps.Band
	StaleRunLength   int
	MinBlockDuration time.Duration
	SessionFilter    bool
	Calendar         session.Calendar
}

// FromApp derives a pipeline Config from the application configuration.
func FromApp(cfg *config.AppConfig) Config {
	shortMin, shortMax := cfg.Gaps.ShortBand()
	longMin, longMax := cfg.Gaps.LongBand()
	return Config{
		Interval:         cfg.Pipeline.Interval(),
		ShortBand:        gaps.Band{Min: shortMin, Max: shortMax},
		LongBand:         gaps.Band{Min: longMin, Max: longMax},
		StaleRunLength:   cfg.Pipeline.StaleRunLength,
		MinBlockDuration: cfg.Pipeline.MinBlock(),
		SessionFilter:    cfg.Session.Enabled,
		Calendar:         session.FXWeek{},
	}
}

// Result is the output bundle for one series run.
type Result struct {
	Name          string
	State         State
	Clean         models.Series
	ShortGaps     []models.Gap
	LongGaps      []models.Gap
	InvalidBlocks []models.InvalidBlock
	Report        models.Report
}

// Pipeline runs the cleaning stages for independent series. A Pipeline is
// safe to reuse across series; each run works on its own data.
type Pipeline struct {
	cfg        Config
	logger     *slog.Logger
	normalizer *normalize.Normalizer
	validator  *validator.RowValidator
	detector   *gaps.Detector
}

// New creates a pipeline from the resolved configuration.
func New(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Calendar == nil {
		cfg.Calendar = session.FXWeek{}
	}
	return &Pipeline{
		cfg:        cfg,
		logger:     logger.With("component", "pipeline"),
		normalizer: normalize.New(logger),
		validator:  validator.New(cfg.StaleRunLength, logger),
		detector:   gaps.NewDetector(cfg.Interval, logger),
	}
}

// Run executes the full pipeline over one raw series. Row-level defects are
// recovered by filtering and counted in the report; only a wholly
// unparseable time series aborts the run.
func (p *Pipeline) Run(ctx context.Context, name string, rows []models.RawBar) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := p.logger.With("series", name)
	logger.Info("pipeline started", "source_rows", len(rows))

	result := &Result{Name: name}
	result.Report.SourceRows = len(rows)

	series, droppedTS := p.normalizer.Normalize(rows)
	result.Report.UnparseableTimestamps = droppedTS

	if len(rows) > 0 && len(series) == 0 {
		result.State = StateAborted
		err := cerrors.NewSchemaDefect("pipeline", "normalize",
			fmt.Errorf("series %s: no parseable timestamps in %d rows", name, len(rows)))
		logger.Error("pipeline aborted", "error", err)
		return result, err
	}

	if p.cfg.SessionFilter {
		series, result.Report.OutOfSession = session.Filter(series, p.cfg.Calendar, logger)
	}

	series, result.Report.DuplicateTimestamps = p.normalizer.Deduplicate(series)

	// Snapshot for the invalid-block detector: post-dedup, pre-removal. The
	// sanity and stale filters below must not see or mutate it.
	snapshot := series.Clone()

	series, result.Report.SanityViolations = p.validator.SanityFilter(series)
	series, result.Report.StaleRows = p.validator.RemoveStaleRuns(series)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Clean = series
	result.Report.CleanRows = len(series)
	result.ShortGaps = p.detector.Detect(series, p.cfg.ShortBand)
	result.LongGaps = p.detector.Detect(series, p.cfg.LongBand)
	result.Report.StructuralBreaks = p.detector.CountBreaksBeyond(series, p.cfg.LongBand.Max)
	result.InvalidBlocks = p.detector.InvalidBlocks(snapshot, p.cfg.MinBlockDuration)

	result.State = StateDone
	logger.Info("pipeline completed",
		"clean_rows", result.Report.CleanRows,
		"removed_rows", result.Report.RemovedRows(),
		"short_gaps", len(result.ShortGaps),
		"long_gaps", len(result.LongGaps),
		"invalid_blocks", len(result.InvalidBlocks),
		"structural_breaks", result.Report.StructuralBreaks)

	return result, nil
}
