// Package ingest reads raw series files into pipeline input rows. Only the
// configured time and OHLC columns are extracted; everything else in the
// file is ignored. Column names vary per data provider, so each source
// carries its own schema.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	cerrors "github.com/fxdata/go-series-cleaner/internal/errors"
	"github.com/fxdata/go-series-cleaner/internal/models"
)

// Schema names the columns holding the time field and the OHLC vector.
// Time is required; price columns may be empty when a source does not
// provide them, in which case the corresponding Bar fields stay missing.
type Schema struct {
	Time  string
	Open  string
	High  string
	Low   string
	Close string
}

// DefaultSchema is the column layout most providers use.
func DefaultSchema() Schema {
	return Schema{Time: "timestamp", Open: "open", High: "high", Low: "low", Close: "close"}
}

// Reader reads CSV series files for one source schema.
type Reader struct {
	schema Schema
	logger *slog.Logger
}

// NewReader creates a reader for the given schema.
func NewReader(schema Schema, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		schema: schema,
		logger: logger.With("component", "reader"),
	}
}

// ReadFile reads one CSV file into raw rows. A missing required column is a
// schema defect, fatal for this series only; malformed data rows are kept as
// raw strings for the pipeline to judge.
func (r *Reader) ReadFile(path string) ([]models.RawBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cerrors.NewIO("ingest", "open_file", err)
	}
	defer f.Close()

	rows, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// Read parses CSV content from an arbitrary reader.
func (r *Reader) Read(src io.Reader) ([]models.RawBar, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1 // ragged rows are a row-level concern
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, cerrors.NewSchemaDefect("ingest", "read_header",
			fmt.Errorf("file is empty"))
	}
	if err != nil {
		return nil, cerrors.NewIO("ingest", "read_header", err)
	}

	index, err := r.columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []models.RawBar
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A single malformed line never aborts the series.
			r.logger.Warn("skipping malformed csv line", "error", err)
			continue
		}
		rows = append(rows, models.RawBar{
			Time:  field(record, index.time),
			Open:  field(record, index.open),
			High:  field(record, index.high),
			Low:   field(record, index.low),
			Close: field(record, index.close),
		})
	}

	r.logger.Debug("file read", "rows", len(rows))
	return rows, nil
}

type columnIndex struct {
	time, open, high, low, close int
}

// columnIndex resolves schema column names against the header,
// case-insensitively. The time column is mandatory; absent price columns
// resolve to -1 and yield missing values.
func (r *Reader) columnIndex(header []string) (columnIndex, error) {
	find := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	idx := columnIndex{
		time:  find(r.schema.Time),
		open:  find(r.schema.Open),
		high:  find(r.schema.High),
		low:   find(r.schema.Low),
		close: find(r.schema.Close),
	}
	if idx.time < 0 {
		return idx, cerrors.NewSchemaDefect("ingest", "resolve_columns",
			fmt.Errorf("required time column %q not found in header %v", r.schema.Time, header))
	}
	return idx, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
