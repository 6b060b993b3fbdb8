package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Writer persists one artifact type to a file. Implementations are chosen by
// the configured output format; the path passed in already carries the right
// extension.
type Writer interface {
	WriteBars(path string, recs []BarRecord) error
	WriteGaps(path string, recs []GapRecord) error
	WriteBlocks(path string, recs []BlockRecord) error
	Extension() string
}

// NewWriter returns the writer for a format (csv, parquet, json), or nil
// when the format is not supported.
func NewWriter(format string) Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return csvWriter{}
	case "parquet":
		return parquetWriter{}
	case "json":
		return jsonWriter{}
	default:
		return nil
	}
}

// MustWriter is NewWriter but panics on an unsupported format. Config
// validation rejects bad formats first, so reaching the panic is a bug.
func MustWriter(format string) Writer {
	w := NewWriter(format)
	if w == nil {
		panic(fmt.Sprintf("artifacts: unsupported format %q (use: csv, parquet, json)", format))
	}
	return w
}

type parquetWriter struct{}

func (parquetWriter) Extension() string { return "parquet" }

func (parquetWriter) WriteBars(path string, recs []BarRecord) error {
	return parquet.WriteFile(path, recs)
}

func (parquetWriter) WriteGaps(path string, recs []GapRecord) error {
	return parquet.WriteFile(path, recs)
}

func (parquetWriter) WriteBlocks(path string, recs []BlockRecord) error {
	return parquet.WriteFile(path, recs)
}

type jsonWriter struct{}

func (jsonWriter) Extension() string { return "json" }

func (jsonWriter) WriteBars(path string, recs []BarRecord) error {
	return writeJSON(path, recs)
}

func (jsonWriter) WriteGaps(path string, recs []GapRecord) error {
	return writeJSON(path, recs)
}

func (jsonWriter) WriteBlocks(path string, recs []BlockRecord) error {
	return writeJSON(path, recs)
}

func writeJSON[T any](path string, recs []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

type csvWriter struct{}

func (csvWriter) Extension() string { return "csv" }

func (csvWriter) WriteBars(path string, recs []BarRecord) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{r.Timestamp, r.Open, r.High, r.Low, r.Close})
	}
	return writeCSV(path, []string{"timestamp", "open", "high", "low", "close"}, rows)
}

func (csvWriter) WriteGaps(path string, recs []GapRecord) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.ID, r.Start, r.End, strconv.Itoa(r.DurationMinutes), r.RawDiff,
		})
	}
	return writeCSV(path, []string{"id", "gap_start", "gap_end", "gap_duration_min", "gap_diff"}, rows)
}

func (csvWriter) WriteBlocks(path string, recs []BlockRecord) error {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.ID, r.Start, r.End, strconv.FormatBool(r.IsInvalid),
			strconv.Itoa(r.RowCount), strconv.Itoa(r.DurationMinutes),
		})
	}
	return writeCSV(path, []string{"id", "start", "end", "is_invalid", "n_rows", "duration_min"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
