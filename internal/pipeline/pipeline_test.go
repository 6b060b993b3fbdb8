package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/fxdata/go-series-cleaner/internal/errors"
	"github.com/fxdata/go-series-cleaner/internal/gaps"
	"github.com/fxdata/go-series-cleaner/internal/models"
)

func testConfig() Config {
	return Config{
		Interval:         time.Minute,
		ShortBand:        gaps.Band{Min: time.Minute, Max: 48 * time.Hour},
		LongBand:         gaps.Band{Min: 48 * time.Hour, Max: 240 * time.Hour},
		StaleRunLength:   60,
		MinBlockDuration: time.Minute,
		SessionFilter:    false,
	}
}

func rawRow(ts time.Time, price string) models.RawBar {
	return models.RawBar{
		Time: ts.Format("2006-01-02 15:04:05"),
		Open: price, High: price, Low: price, Close: price,
	}
}

func TestRunHappyPath(t *testing.T) {
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) // Tuesday

	var rows []models.RawBar
	for i := 0; i < 5; i++ {
		rows = append(rows, rawRow(base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("1.%04d", i+1)))
	}
	// A five-minute hole, then more data.
	for i := 10; i < 13; i++ {
		rows = append(rows, rawRow(base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("1.%04d", i+1)))
	}

	p := New(testConfig(), nil)
	result, err := p.Run(context.Background(), "eurusd", rows)

	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 8, result.Report.CleanRows)
	require.Len(t, result.ShortGaps, 1)
	assert.Empty(t, result.LongGaps)
	assert.Equal(t, 5, result.ShortGaps[0].DurationMinutes)
	assert.True(t, result.ShortGaps[0].Start.Equal(base.Add(5*time.Minute)))
	assert.True(t, result.ShortGaps[0].End.Equal(base.Add(9*time.Minute)))
}

func TestRunSnapshotDistinction(t *testing.T) {
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	rows := []models.RawBar{
		rawRow(base, "1.1"),
		rawRow(base.Add(time.Minute), "0"), // zero OHLC: sanity filter removes it
		rawRow(base.Add(2*time.Minute), "0"),
		rawRow(base.Add(3*time.Minute), "1.2"),
	}

	result, err := New(testConfig(), nil).Run(context.Background(), "test", rows)
	require.NoError(t, err)

	// The clean series lost the zero rows and gained a gap in their place.
	assert.Equal(t, 2, result.Report.CleanRows)
	assert.Equal(t, 2, result.Report.SanityViolations)
	require.Len(t, result.ShortGaps, 1)
	assert.Equal(t, 2, result.ShortGaps[0].DurationMinutes)

	// The invalid-block detector saw the pre-removal snapshot and reports
	// the same two rows as a dated block.
	require.Len(t, result.InvalidBlocks, 1)
	block := result.InvalidBlocks[0]
	assert.True(t, block.Start.Equal(base.Add(time.Minute)))
	assert.True(t, block.End.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, 2, block.RowCount)
	assert.Equal(t, 2*time.Minute, block.Duration)
}

func TestRunSessionFilterOrder(t *testing.T) {
	cfg := testConfig()
	cfg.SessionFilter = true

	// Friday 2024-03-08. Two rows share the 21:59 timestamp: one inside the
	// session written first, one written later. Dedup runs after the session
	// filter, so the later write wins among surviving rows.
	friday := time.Date(2024, 3, 8, 21, 58, 0, 0, time.UTC)
	rows := []models.RawBar{
		rawRow(friday, "1.0"),
		rawRow(friday.Add(time.Minute), "1.1"),
		rawRow(friday.Add(time.Minute), "1.15"), // duplicate 21:59, keep-last
		rawRow(friday.Add(2*time.Minute), "1.2"),  // 22:00, retained
		rawRow(friday.Add(3*time.Minute), "1.3"),  // 22:01, out of session
		rawRow(friday.Add(10*time.Minute), "1.4"), // 22:08, out of session
	}

	result, err := New(cfg, nil).Run(context.Background(), "test", rows)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Report.OutOfSession)
	assert.Equal(t, 1, result.Report.DuplicateTimestamps)
	require.Equal(t, 3, result.Report.CleanRows)
	assert.Equal(t, "1.15", result.Clean[1].Close)
}

func TestRunStaleRemovalFeedsGapDetector(t *testing.T) {
	cfg := testConfig()
	cfg.StaleRunLength = 5

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rows := []models.RawBar{rawRow(base, "1.0")}
	for i := 1; i <= 5; i++ {
		rows = append(rows, rawRow(base.Add(time.Duration(i)*time.Minute), "1.5"))
	}
	rows = append(rows, rawRow(base.Add(6*time.Minute), "1.6"))

	result, err := New(cfg, nil).Run(context.Background(), "test", rows)
	require.NoError(t, err)

	// The stale run was removed, so the cleaned series sees a gap where the
	// frozen quotes used to be. Removed and never-recorded periods are
	// indistinguishable by design.
	assert.Equal(t, 5, result.Report.StaleRows)
	assert.Equal(t, 2, result.Report.CleanRows)
	require.Len(t, result.ShortGaps, 1)
	assert.Equal(t, 5, result.ShortGaps[0].DurationMinutes)
}

func TestRunAbortsOnUnparseableSeries(t *testing.T) {
	rows := []models.RawBar{
		{Time: "garbage", Close: "1.0"},
		{Time: "also-garbage", Close: "1.1"},
	}

	result, err := New(testConfig(), nil).Run(context.Background(), "broken", rows)

	require.Error(t, err)
	assert.True(t, cerrors.IsSchemaDefect(err))
	assert.Equal(t, StateAborted, result.State)
	assert.Equal(t, 2, result.Report.UnparseableTimestamps)
}

func TestRunEmptyInputIsDone(t *testing.T) {
	result, err := New(testConfig(), nil).Run(context.Background(), "empty", nil)

	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Zero(t, result.Report.CleanRows)
	assert.Empty(t, result.ShortGaps)
	assert.Empty(t, result.LongGaps)
	assert.Empty(t, result.InvalidBlocks)
}

func TestRunSingleBadRowIsRecovered(t *testing.T) {
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rows := []models.RawBar{
		rawRow(base, "1.0"),
		{Time: "not-a-time", Close: "9.9"},
		rawRow(base.Add(time.Minute), "1.1"),
	}

	result, err := New(testConfig(), nil).Run(context.Background(), "test", rows)

	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 1, result.Report.UnparseableTimestamps)
	assert.Equal(t, 2, result.Report.CleanRows)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(), nil).Run(ctx, "test", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
