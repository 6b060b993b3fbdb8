// FX Minute Series Cleaner CLI
// This application cleans raw FX minute bar files and classifies the data
// gaps left behind: sorting, session filtering, deduplication, sanity
// filtering, stale run removal, gap banding and invalid block detection.
//
// Usage:
//
//	seriesclean run --config seriesclean.json
//	seriesclean clean --input eurusd.csv --output ./out --format json
//
// For detailed help on any command, use: seriesclean <command> --help
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fxdata/go-series-cleaner/internal/artifacts"
	"github.com/fxdata/go-series-cleaner/internal/config"
	"github.com/fxdata/go-series-cleaner/internal/ingest"
	"github.com/fxdata/go-series-cleaner/internal/logger"
	"github.com/fxdata/go-series-cleaner/internal/pipeline"
	"github.com/fxdata/go-series-cleaner/internal/runner"
)

const (
	Version = "1.0.0"
	AppName = "seriesclean"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0
	ExitUsageError  = 1
	ExitConfigError = 2
	ExitDataError   = 4
	ExitInterrupt   = 130
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(ExitUsageError)
	}

	_ = godotenv.Load() // best-effort

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		os.Exit(runBatch(ctx, args))
	case "clean":
		os.Exit(cleanFile(ctx, args))
	case "--version", "-v":
		fmt.Printf("%s version %s\n", AppName, Version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(ExitUsageError)
	}
}

// runBatch executes every configured source through the pipeline.
func runBatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "seriesclean.json", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	cfg, err := config.NewManager(*configPath, nil).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		return ExitConfigError
	}

	logs, err := logger.NewManager(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to setup logging: %v\n", err)
		return ExitConfigError
	}
	defer logs.Close()
	log := logs.Component("cli")

	var db *artifacts.DuckDB
	if cfg.Artifacts.DuckDB.Enabled {
		db, err = artifacts.NewDuckDB(cfg.Artifacts.DuckDB.Path, logs.Logger())
		if err != nil {
			log.Error("failed to open duckdb sink", "error", err)
			return ExitConfigError
		}
		defer db.Close()
		if err := db.Initialize(ctx); err != nil {
			log.Error("failed to initialize duckdb sink", "error", err)
			return ExitConfigError
		}
	}

	summary, err := runner.New(cfg, db, logs.Logger()).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("batch interrupted")
			return ExitInterrupt
		}
		log.Error("batch failed", "error", err)
		return ExitDataError
	}

	fmt.Printf("Processed %d file(s), skipped %d, in %s\n",
		summary.FilesProcessed, summary.FilesSkipped, summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("Clean rows: %d (removed %d)\n", summary.CleanRows, summary.RemovedRows)
	fmt.Printf("Gaps: %d short, %d long; invalid blocks: %d\n",
		summary.ShortGaps, summary.LongGaps, summary.InvalidBlocks)
	return ExitSuccess
}

// cleanFile runs a single file through the pipeline without a batch config.
func cleanFile(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	input := fs.String("input", "", "input CSV file (required)")
	output := fs.String("output", ".", "output directory")
	format := fs.String("format", "csv", "artifact format: csv, parquet, json")
	name := fs.String("name", "", "series name (default: input file base name)")
	timeCol := fs.String("time-column", "timestamp", "name of the time column")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: --input is required")
		return ExitUsageError
	}

	cfg := config.DefaultConfig()
	cfg.Artifacts.Format = *format

	logs, err := logger.NewManager(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to setup logging: %v\n", err)
		return ExitConfigError
	}
	defer logs.Close()
	log := logs.Component("cli")

	schema := ingest.DefaultSchema()
	schema.Time = *timeCol
	rows, err := ingest.NewReader(schema, logs.Logger()).ReadFile(*input)
	if err != nil {
		log.Error("failed to read input", "path", *input, "error", err)
		return ExitDataError
	}

	series := *name
	if series == "" {
		series = baseName(*input)
	}

	result, err := pipeline.New(pipeline.FromApp(cfg), logs.Logger()).Run(ctx, series, rows)
	if err != nil {
		log.Error("cleaning failed", "series", series, "error", err)
		return ExitDataError
	}

	sink, err := artifacts.NewSink(*output, *format, logs.Logger())
	if err != nil {
		log.Error("invalid output format", "format", *format, "error", err)
		return ExitConfigError
	}
	if err := sink.WriteAll(ctx, series, result.Clean,
		result.ShortGaps, result.LongGaps, result.InvalidBlocks); err != nil {
		log.Error("failed to write artifacts", "error", err)
		return ExitDataError
	}

	fmt.Printf("Cleaned %s: %d rows in, %d clean, %d removed\n",
		series, result.Report.SourceRows, result.Report.CleanRows, result.Report.RemovedRows())
	fmt.Printf("Gaps: %d short, %d long; invalid blocks: %d\n",
		len(result.ShortGaps), len(result.LongGaps), len(result.InvalidBlocks))
	return ExitSuccess
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printUsage() {
	fmt.Printf(`%s - FX minute series cleaner

Usage:
  %s <command> [options]

Commands:
  run      Process every source in the configuration file
  clean    Clean a single CSV file
  help     Show this help message

Options:
  --version, -v    Show version information
  --help, -h       Show help

Examples:
  %s run --config seriesclean.json
  %s clean --input eurusd.csv --output ./out --format parquet

Environment variables (and a .env file, if present) override file settings:
  NOMINAL_INTERVAL, STALE_RUN_LENGTH, ARTIFACT_FORMAT, WORKER_COUNT,
  DUCKDB_ENABLED, DUCKDB_PATH, LOG_LEVEL, LOG_FORMAT
`, AppName, AppName, AppName, AppName)
}
