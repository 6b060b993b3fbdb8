package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cerrors "github.com/fxdata/go-series-cleaner/internal/errors"
	"github.com/fxdata/go-series-cleaner/internal/models"
)

// Sink writes the full artifact set for one cleaned series: the clean bars,
// the short and long gap tables, and the invalid block table. File writes go
// through the IO retry policy since transient filesystem errors are the one
// failure class worth a second attempt.
type Sink struct {
	dir    string
	writer Writer
	logger *slog.Logger
}

// NewSink creates a sink writing to dir in the given format.
func NewSink(dir, format string, logger *slog.Logger) (*Sink, error) {
	w := NewWriter(format)
	if w == nil {
		return nil, cerrors.New(cerrors.KindConfig, "artifacts", "new_sink",
			fmt.Errorf("unsupported output format %q", format))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		dir:    dir,
		writer: w,
		logger: logger.With("component", "artifacts"),
	}, nil
}

// Path returns the artifact path for a series name and suffix.
func (s *Sink) Path(name, suffix string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.%s", name, suffix, s.writer.Extension()))
}

// WriteAll persists the four artifacts for one series.
func (s *Sink) WriteAll(ctx context.Context, name string, clean models.Series,
	shortGaps, longGaps []models.Gap, blocks []models.InvalidBlock) error {

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return cerrors.NewIO("artifacts", "mkdir", err)
	}

	steps := []struct {
		suffix string
		write  func(path string) error
	}{
		{"clean", func(p string) error { return s.writer.WriteBars(p, BarRecords(clean)) }},
		{"short_gaps", func(p string) error { return s.writer.WriteGaps(p, GapRecords(shortGaps)) }},
		{"long_gaps", func(p string) error { return s.writer.WriteGaps(p, GapRecords(longGaps)) }},
		{"invalid_blocks", func(p string) error { return s.writer.WriteBlocks(p, BlockRecords(blocks)) }},
	}

	for _, step := range steps {
		path := s.Path(name, step.suffix)
		err := cerrors.Retry(ctx, s.logger, "write_"+step.suffix, func() error {
			if err := step.write(path); err != nil {
				return cerrors.NewIO("artifacts", "write_"+step.suffix, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	s.logger.Info("artifacts written",
		"series", name,
		"dir", s.dir,
		"format", s.writer.Extension(),
		"clean_rows", len(clean),
		"short_gaps", len(shortGaps),
		"long_gaps", len(longGaps),
		"invalid_blocks", len(blocks))
	return nil
}
