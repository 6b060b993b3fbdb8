package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxdata/go-series-cleaner/internal/artifacts"
	"github.com/fxdata/go-series-cleaner/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// batchConfig builds a single-source config over a temp input dir with JSON
// artifacts, small enough to reason about by hand.
func batchConfig(t *testing.T, inputDir, outputDir string) *config.AppConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Artifacts.Format = "json"
	cfg.Runner.WorkerCount = 2
	cfg.Sources = []config.SourceConfig{{
		Name:       "test",
		InputDir:   inputDir,
		Glob:       "*.csv",
		OutputDir:  outputDir,
		TimeColumn: "timestamp",
	}}
	return cfg
}

func TestRunBatch(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	// Monday 2024-03-04, in session. Minute 3 is absent and minute 2
	// duplicated; the clean output keeps the last duplicate.
	writeFile(t, inputDir, "eurusd.csv", `timestamp,open,high,low,close
2024-03-04 10:00:00,1.0850,1.0860,1.0845,1.0855
2024-03-04 10:01:00,1.0855,1.0857,1.0850,1.0852
2024-03-04 10:02:00,1.0852,1.0853,1.0849,1.0850
2024-03-04 10:02:00,1.0852,1.0854,1.0849,1.0851
2024-03-04 10:04:00,1.0851,1.0858,1.0850,1.0857
`)
	writeFile(t, inputDir, "gbpusd.csv", `timestamp,open,high,low,close
2024-03-04 10:00:00,1.2650,1.2660,1.2645,1.2655
2024-03-04 10:01:00,1.2655,1.2657,1.2650,1.2652
`)

	cfg := batchConfig(t, inputDir, outputDir)
	r := New(cfg, nil, nil)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesSkipped)
	assert.Equal(t, 6, summary.CleanRows)
	assert.Equal(t, 1, summary.ShortGaps)
	assert.Equal(t, 0, summary.LongGaps)

	data, err := os.ReadFile(filepath.Join(outputDir, "test_eurusd_clean.json"))
	require.NoError(t, err)
	var clean []artifacts.BarRecord
	require.NoError(t, json.Unmarshal(data, &clean))
	require.Len(t, clean, 4)
	assert.Equal(t, "1.0851", clean[2].Close)

	for _, suffix := range []string{"short_gaps", "long_gaps", "invalid_blocks"} {
		_, statErr := os.Stat(filepath.Join(outputDir, "test_gbpusd_"+suffix+".json"))
		assert.NoError(t, statErr)
	}
}

func TestRunSkipsSchemaDefects(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	writeFile(t, inputDir, "good.csv", `timestamp,open,high,low,close
2024-03-04 10:00:00,1.1,1.2,1.0,1.15
2024-03-04 10:01:00,1.15,1.2,1.1,1.18
`)
	// no time column, fatal for this file only
	writeFile(t, inputDir, "broken.csv", `open,high,low,close
1.1,1.2,1.0,1.15
`)

	cfg := batchConfig(t, inputDir, outputDir)
	r := New(cfg, nil, nil)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.FilesSkipped)

	_, err = os.Stat(filepath.Join(outputDir, "test_good_clean.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputDir, "test_broken_clean.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunEmptySource(t *testing.T) {
	cfg := batchConfig(t, t.TempDir(), t.TempDir())
	r := New(cfg, nil, nil)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.FilesProcessed)
}

func TestRunThrottled(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeFile(t, inputDir, "a.csv", "timestamp,open,high,low,close\n2024-03-04 10:00:00,1,2,1,1.5\n")
	writeFile(t, inputDir, "b.csv", "timestamp,open,high,low,close\n2024-03-04 10:00:00,1,2,1,1.5\n")

	cfg := batchConfig(t, inputDir, outputDir)
	cfg.Runner.FilesPerSecond = 100
	r := New(cfg, nil, nil)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.FilesProcessed)
}

func TestSeriesName(t *testing.T) {
	src := config.SourceConfig{Name: "oanda"}
	assert.Equal(t, "oanda_eurusd", seriesName(src, "/data/in/eurusd.csv"))
	src.Name = ""
	assert.Equal(t, "eurusd", seriesName(src, "/data/in/eurusd.csv"))
}
