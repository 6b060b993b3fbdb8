// Package artifacts persists pipeline output as flat files and an optional
// DuckDB database. Output records are DTOs decoupled from the pipeline
// models so writers do not depend on decimal or duration types.
package artifacts

import (
	"time"

	"github.com/fxdata/go-series-cleaner/internal/models"
)

// BarRecord is the flattened form of a cleaned bar. Prices stay as the
// original strings so exact decimal text survives the round trip; a missing
// field is the empty string.
type BarRecord struct {
	Timestamp string `json:"timestamp" parquet:"timestamp"`
	Open      string `json:"open" parquet:"open,optional"`
	High      string `json:"high" parquet:"high,optional"`
	Low       string `json:"low" parquet:"low,optional"`
	Close     string `json:"close" parquet:"close,optional"`
}

// GapRecord is the flattened form of a classified gap.
type GapRecord struct {
	ID              string `json:"id" parquet:"id"`
	Start           string `json:"gap_start" parquet:"gap_start"`
	End             string `json:"gap_end" parquet:"gap_end"`
	DurationMinutes int    `json:"gap_duration_min" parquet:"gap_duration_min"`
	RawDiff         string `json:"gap_diff" parquet:"gap_diff"`
}

// BlockRecord is the flattened form of an invalid block.
type BlockRecord struct {
	ID              string `json:"id" parquet:"id"`
	Start           string `json:"start" parquet:"start"`
	End             string `json:"end" parquet:"end"`
	IsInvalid       bool   `json:"is_invalid" parquet:"is_invalid"`
	RowCount        int    `json:"n_rows" parquet:"n_rows"`
	DurationMinutes int    `json:"duration_min" parquet:"duration_min"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// BarRecords converts a cleaned series into output records.
func BarRecords(series models.Series) []BarRecord {
	out := make([]BarRecord, 0, len(series))
	for _, b := range series {
		out = append(out, BarRecord{
			Timestamp: formatTime(b.Timestamp),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
		})
	}
	return out
}

// GapRecords converts detected gaps into output records.
func GapRecords(gaps []models.Gap) []GapRecord {
	out := make([]GapRecord, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, GapRecord{
			ID:              g.ID,
			Start:           formatTime(g.Start),
			End:             formatTime(g.End),
			DurationMinutes: g.DurationMinutes,
			RawDiff:         g.RawDiff.String(),
		})
	}
	return out
}

// BlockRecords converts invalid blocks into output records.
func BlockRecords(blocks []models.InvalidBlock) []BlockRecord {
	out := make([]BlockRecord, 0, len(blocks))
	for _, ib := range blocks {
		out = append(out, BlockRecord{
			ID:              ib.ID,
			Start:           formatTime(ib.Start),
			End:             formatTime(ib.End),
			IsInvalid:       ib.IsInvalid,
			RowCount:        ib.RowCount,
			DurationMinutes: int(ib.Duration / time.Minute),
		})
	}
	return out
}
