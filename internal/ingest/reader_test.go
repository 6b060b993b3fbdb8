package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/fxdata/go-series-cleaner/internal/errors"
)

func TestReadDefaultSchema(t *testing.T) {
	csvData := `timestamp,open,high,low,close,volume
2024-03-04 10:15:00,1.0850,1.0860,1.0845,1.0855,1200
2024-03-04 10:16:00,1.0855,1.0856,1.0850,1.0852,900
`
	r := NewReader(DefaultSchema(), nil)
	rows, err := r.Read(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-03-04 10:15:00", rows[0].Time)
	assert.Equal(t, "1.0850", rows[0].Open)
	assert.Equal(t, "1.0855", rows[0].Close)
	// volume column is ignored
	assert.Equal(t, "1.0852", rows[1].Close)
}

func TestReadProviderSchema(t *testing.T) {
	csvData := `Date,O,H,L,C
2024-03-04T10:15:00Z,1.1,1.2,1.0,1.15
`
	r := NewReader(Schema{Time: "date", Open: "o", High: "h", Low: "l", Close: "c"}, nil)
	rows, err := r.Read(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1.15", rows[0].Close)
}

func TestReadMissingTimeColumn(t *testing.T) {
	csvData := `open,high,low,close
1.1,1.2,1.0,1.15
`
	r := NewReader(DefaultSchema(), nil)
	_, err := r.Read(strings.NewReader(csvData))
	require.Error(t, err)
	assert.True(t, cerrors.IsSchemaDefect(err))
}

func TestReadMissingPriceColumnYieldsMissingValues(t *testing.T) {
	csvData := `timestamp,open,high,low
2024-03-04 10:15:00,1.1,1.2,1.0
`
	r := NewReader(DefaultSchema(), nil)
	rows, err := r.Read(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Close)
}

func TestReadEmptyFile(t *testing.T) {
	r := NewReader(DefaultSchema(), nil)
	_, err := r.Read(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, cerrors.IsSchemaDefect(err))
}

func TestReadRaggedRowSkipped(t *testing.T) {
	csvData := "timestamp,open,high,low,close\n" +
		"2024-03-04 10:15:00,1.1,1.2,1.0,1.15\n" +
		"2024-03-04 10:16:00,1.1\n" + // short row still yields a partial bar
		"2024-03-04 10:17:00,1.2,1.3,1.1,1.25\n"
	r := NewReader(DefaultSchema(), nil)
	rows, err := r.Read(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "", rows[1].Close)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eurusd.csv")
	content := "timestamp,open,high,low,close\n2024-03-04 10:15:00,1.1,1.2,1.0,1.15\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := NewReader(DefaultSchema(), nil)
	rows, err := r.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadFileMissing(t *testing.T) {
	r := NewReader(DefaultSchema(), nil)
	_, err := r.ReadFile(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Equal(t, cerrors.KindIO, cerrors.KindOf(err))
}
