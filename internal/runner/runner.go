// Package runner drives the cleaning pipeline over every configured source.
// Files inside a batch carry independent series, so the runner fans work out
// to a bounded worker pool; a schema defect in one file skips that file and
// leaves the rest of the batch running.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fxdata/go-series-cleaner/internal/artifacts"
	"github.com/fxdata/go-series-cleaner/internal/config"
	cerrors "github.com/fxdata/go-series-cleaner/internal/errors"
	"github.com/fxdata/go-series-cleaner/internal/ingest"
	"github.com/fxdata/go-series-cleaner/internal/pipeline"
)

// Summary aggregates counts across one batch run.
type Summary struct {
	FilesProcessed int
	FilesSkipped   int
	CleanRows      int
	RemovedRows    int
	ShortGaps      int
	LongGaps       int
	InvalidBlocks  int
	Elapsed        time.Duration
}

// Runner executes the full batch described by the configuration.
type Runner struct {
	cfg    *config.AppConfig
	logger *slog.Logger
	pipe   *pipeline.Pipeline
	db     *artifacts.DuckDB

	mu      sync.Mutex
	summary Summary
}

// New creates a batch runner. The DuckDB sink is optional; pass nil when the
// database mirror is disabled.
func New(cfg *config.AppConfig, db *artifacts.DuckDB, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.With("component", "runner"),
		pipe:   pipeline.New(pipeline.FromApp(cfg), logger),
		db:     db,
	}
}

// Run processes every file of every configured source and returns the batch
// summary. Only IO-level failures outside the per-file scope abort the run.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	var limiter *rate.Limiter
	if r.cfg.Runner.FilesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Runner.FilesPerSecond), 1)
	}

	g, ctx := errgroup.WithContext(ctx)
	workers := r.cfg.Runner.WorkerCount
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, src := range r.cfg.Sources {
		src := src
		files, err := filepath.Glob(filepath.Join(src.InputDir, src.Glob))
		if err != nil {
			return nil, cerrors.NewIO("runner", "glob", fmt.Errorf("source %s: %w", src.Name, err))
		}
		if len(files) == 0 {
			r.logger.Warn("source matched no files",
				"source", src.Name,
				"input_dir", src.InputDir,
				"glob", src.Glob)
			continue
		}

		sink, err := artifacts.NewSink(src.OutputDir, r.cfg.Artifacts.Format, r.logger)
		if err != nil {
			return nil, err
		}
		reader := ingest.NewReader(schemaFor(src), r.logger)

		for _, path := range files {
			path := path
			g.Go(func() error {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				}
				return r.processFile(ctx, reader, sink, src, path)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	summary := r.summary
	r.mu.Unlock()
	summary.Elapsed = time.Since(start)

	r.logger.Info("batch complete",
		"files_processed", summary.FilesProcessed,
		"files_skipped", summary.FilesSkipped,
		"clean_rows", summary.CleanRows,
		"removed_rows", summary.RemovedRows,
		"short_gaps", summary.ShortGaps,
		"long_gaps", summary.LongGaps,
		"invalid_blocks", summary.InvalidBlocks,
		"elapsed", summary.Elapsed)
	return &summary, nil
}

// processFile runs one file through read, clean and persist. Schema defects
// skip the file; anything else fails the batch.
func (r *Runner) processFile(ctx context.Context, reader *ingest.Reader, sink *artifacts.Sink,
	src config.SourceConfig, path string) error {

	name := seriesName(src, path)
	logger := r.logger.With("source", src.Name, "series", name)

	rows, err := reader.ReadFile(path)
	if err != nil {
		if cerrors.IsSchemaDefect(err) {
			logger.Error("skipping file with schema defect", "path", path, "error", err)
			r.recordSkip()
			return nil
		}
		return err
	}

	result, err := r.pipe.Run(ctx, name, rows)
	if err != nil {
		if cerrors.IsSchemaDefect(err) {
			logger.Error("skipping unusable series", "path", path, "error", err)
			r.recordSkip()
			return nil
		}
		return err
	}

	if err := sink.WriteAll(ctx, name, result.Clean,
		result.ShortGaps, result.LongGaps, result.InvalidBlocks); err != nil {
		return err
	}
	if r.db != nil {
		if err := r.storeResult(ctx, name, result); err != nil {
			return err
		}
	}

	r.recordResult(result)
	return nil
}

func (r *Runner) storeResult(ctx context.Context, name string, result *pipeline.Result) error {
	if err := r.db.StoreSeries(ctx, name, result.Clean); err != nil {
		return err
	}
	if err := r.db.StoreGaps(ctx, name, "short", result.ShortGaps); err != nil {
		return err
	}
	if err := r.db.StoreGaps(ctx, name, "long", result.LongGaps); err != nil {
		return err
	}
	return r.db.StoreBlocks(ctx, name, result.InvalidBlocks)
}

func (r *Runner) recordResult(result *pipeline.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.FilesProcessed++
	r.summary.CleanRows += result.Report.CleanRows
	r.summary.RemovedRows += result.Report.RemovedRows()
	r.summary.ShortGaps += len(result.ShortGaps)
	r.summary.LongGaps += len(result.LongGaps)
	r.summary.InvalidBlocks += len(result.InvalidBlocks)
}

func (r *Runner) recordSkip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.FilesSkipped++
}

// seriesName derives the output name from the file, prefixed by the source
// when the batch mixes providers.
func seriesName(src config.SourceConfig, path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if src.Name == "" {
		return base
	}
	return src.Name + "_" + base
}

func schemaFor(src config.SourceConfig) ingest.Schema {
	schema := ingest.DefaultSchema()
	if src.TimeColumn != "" {
		schema.Time = src.TimeColumn
	}
	if src.OpenColumn != "" {
		schema.Open = src.OpenColumn
	}
	if src.HighColumn != "" {
		schema.High = src.HighColumn
	}
	if src.LowColumn != "" {
		schema.Low = src.LowColumn
	}
	if src.CloseColumn != "" {
		schema.Close = src.CloseColumn
	}
	return schema
}
