package artifacts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb/v2"
	"github.com/shopspring/decimal"

	cerrors "github.com/fxdata/go-series-cleaner/internal/errors"
	"github.com/fxdata/go-series-cleaner/internal/models"
)

// DuckDB mirrors the file artifacts into a DuckDB database so the output of
// a batch run can be queried directly. Bulk inserts go through the Appender
// API rather than INSERT statements.
type DuckDB struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewDuckDB opens a DuckDB database at dbPath, which may be ":memory:".
func NewDuckDB(dbPath string, logger *slog.Logger) (*DuckDB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, cerrors.NewIO("duckdb", "open", fmt.Errorf("opening database: %w", err))
	}

	// Single writer pattern as recommended for DuckDB.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &DuckDB{
		db:     db,
		dbPath: dbPath,
		logger: logger.With("component", "duckdb"),
	}, nil
}

// Initialize creates the output tables.
func (d *DuckDB) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("initializing duckdb sink", "db_path", d.dbPath)

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			series VARCHAR NOT NULL,
			ts TIMESTAMP NOT NULL,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gaps (
			id VARCHAR NOT NULL,
			series VARCHAR NOT NULL,
			band VARCHAR NOT NULL,
			gap_start TIMESTAMP NOT NULL,
			gap_end TIMESTAMP NOT NULL,
			duration_min INTEGER NOT NULL,
			diff_seconds DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invalid_blocks (
			id VARCHAR NOT NULL,
			series VARCHAR NOT NULL,
			start_ts TIMESTAMP NOT NULL,
			end_ts TIMESTAMP NOT NULL,
			is_invalid BOOLEAN NOT NULL,
			n_rows INTEGER NOT NULL,
			duration_min INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, schema := range schemas {
		if _, err := d.db.ExecContext(ctx, schema); err != nil {
			return cerrors.NewIO("duckdb", "initialize", fmt.Errorf("creating table: %w", err))
		}
	}
	return nil
}

// StoreSeries bulk-inserts the cleaned bars for one series. Missing prices
// become NULL.
func (d *DuckDB) StoreSeries(ctx context.Context, name string, clean models.Series) error {
	return d.appendRows(ctx, "bars", len(clean), func(appender *duckdb.Appender) error {
		now := time.Now().UTC()
		for i := range clean {
			b := &clean[i]
			if err := appender.AppendRow(
				name,
				b.Timestamp.UTC(),
				priceOrNull(b.OpenDecimal()),
				priceOrNull(b.HighDecimal()),
				priceOrNull(b.LowDecimal()),
				priceOrNull(b.CloseDecimal()),
				now,
			); err != nil {
				return fmt.Errorf("appending bar %s: %w", b.Timestamp, err)
			}
		}
		return nil
	})
}

// StoreGaps bulk-inserts gaps for one series under a band label.
func (d *DuckDB) StoreGaps(ctx context.Context, name, band string, gaps []models.Gap) error {
	return d.appendRows(ctx, "gaps", len(gaps), func(appender *duckdb.Appender) error {
		now := time.Now().UTC()
		for _, g := range gaps {
			if err := appender.AppendRow(
				g.ID,
				name,
				band,
				g.Start.UTC(),
				g.End.UTC(),
				int32(g.DurationMinutes),
				g.RawDiff.Seconds(),
				now,
			); err != nil {
				return fmt.Errorf("appending gap %s: %w", g.ID, err)
			}
		}
		return nil
	})
}

// StoreBlocks bulk-inserts invalid blocks for one series.
func (d *DuckDB) StoreBlocks(ctx context.Context, name string, blocks []models.InvalidBlock) error {
	return d.appendRows(ctx, "invalid_blocks", len(blocks), func(appender *duckdb.Appender) error {
		now := time.Now().UTC()
		for _, ib := range blocks {
			if err := appender.AppendRow(
				ib.ID,
				name,
				ib.Start.UTC(),
				ib.End.UTC(),
				ib.IsInvalid,
				int32(ib.RowCount),
				int32(ib.Duration/time.Minute),
				now,
			); err != nil {
				return fmt.Errorf("appending block %s: %w", ib.ID, err)
			}
		}
		return nil
	})
}

// Close releases the database handle.
func (d *DuckDB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// appendRows runs fill inside a DuckDB appender on table and flushes.
func (d *DuckDB) appendRows(ctx context.Context, table string, count int, fill func(*duckdb.Appender) error) error {
	if count == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return cerrors.NewIO("duckdb", "append", fmt.Errorf("database is closed"))
	}

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return cerrors.NewIO("duckdb", "append", fmt.Errorf("getting connection: %w", err))
	}
	defer conn.Close()

	var driverConn *duckdb.Conn
	err = conn.Raw(func(dc any) error {
		var ok bool
		driverConn, ok = dc.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("underlying connection is not a DuckDB connection")
		}
		return nil
	})
	if err != nil {
		return cerrors.NewIO("duckdb", "append", err)
	}

	appender, err := duckdb.NewAppenderFromConn(driverConn, "", table)
	if err != nil {
		return cerrors.NewIO("duckdb", "append", fmt.Errorf("creating appender for %s: %w", table, err))
	}
	defer appender.Close()

	if err := fill(appender); err != nil {
		return cerrors.NewIO("duckdb", "append", err)
	}
	if err := appender.Flush(); err != nil {
		return cerrors.NewIO("duckdb", "append", fmt.Errorf("flushing %s: %w", table, err))
	}

	d.logger.Debug("stored batch", "table", table, "rows", count)
	return nil
}

// priceOrNull converts a price for the Appender API, mapping a missing
// value to NULL.
func priceOrNull(dec decimal.Decimal, ok bool) any {
	if !ok {
		return nil
	}
	f, _ := dec.Float64()
	return f
}
