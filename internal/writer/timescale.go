package writer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool used by TimescaleWriter.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Schema creates the snapshot and smile hypertables.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS option_snapshots (
		slot_time        TIMESTAMPTZ NOT NULL,
		observed_at      TIMESTAMPTZ NOT NULL,
		underlying       TEXT NOT NULL,
		instrument_name  TEXT NOT NULL,
		expiry           TIMESTAMPTZ,
		strike           DOUBLE PRECISION,
		option_type      TEXT NOT NULL,
		bid              DOUBLE PRECISION,
		ask              DOUBLE PRECISION,
		mid              DOUBLE PRECISION,
		iv               DOUBLE PRECISION,
		delta            DOUBLE PRECISION,
		gamma            DOUBLE PRECISION,
		vega             DOUBLE PRECISION,
		theta            DOUBLE PRECISION,
		rho              DOUBLE PRECISION,
		index_price      DOUBLE PRECISION,
		underlying_price DOUBLE PRECISION,
		PRIMARY KEY (instrument_name, slot_time)
	)`,
	`SELECT create_hypertable('option_snapshots', 'slot_time', if_not_exists => TRUE)`,
	`CREATE TABLE IF NOT EXISTS option_smiles (
		slot_time   TIMESTAMPTZ NOT NULL,
		underlying  TEXT NOT NULL,
		expiry      TIMESTAMPTZ NOT NULL,
		option_type TEXT NOT NULL,
		strike      DOUBLE PRECISION NOT NULL,
		bid         DOUBLE PRECISION,
		ask         DOUBLE PRECISION,
		mid         DOUBLE PRECISION,
		iv          DOUBLE PRECISION,
		delta       DOUBLE PRECISION,
		gamma       DOUBLE PRECISION,
		vega        DOUBLE PRECISION,
		theta       DOUBLE PRECISION,
		rho         DOUBLE PRECISION,
		index_price DOUBLE PRECISION,
		forward     DOUBLE PRECISION,
		spread      DOUBLE PRECISION,
		moneyness   DOUBLE PRECISION,
		count       INTEGER NOT NULL,
		PRIMARY KEY (underlying, expiry, option_type, strike, slot_time)
	)`,
	`SELECT create_hypertable('option_smiles', 'slot_time', if_not_exists => TRUE)`,
}

const insertSnapshot = `
	INSERT INTO option_snapshots (slot_time, observed_at, underlying, instrument_name, expiry, strike, option_type, bid, ask, mid, iv, delta, gamma, vega, theta, rho, index_price, underlying_price)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (instrument_name, slot_time) DO NOTHING
`

const insertSmile = `
	INSERT INTO option_smiles (slot_time, underlying, expiry, option_type, strike, bid, ask, mid, iv, delta, gamma, vega, theta, rho, index_price, forward, spread, moneyness, count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (underlying, expiry, option_type, strike, slot_time) DO NOTHING
`

// TimescaleWriter inserts each batch into TimescaleDB.
type TimescaleWriter struct {
	db     DB
	logger *slog.Logger

	mu      sync.Mutex
	metrics TimescaleMetrics
}

// TimescaleMetrics are cumulative counters for a TimescaleWriter.
type TimescaleMetrics struct {
	Inserts   int64
	Conflicts int64
	Skipped   int64 // Smile rows without expiry or strike
	Errors    int64
	Flushes   int64
}

// NewTimescaleWriter creates a new TimescaleWriter.
func NewTimescaleWriter(db DB, logger *slog.Logger) *TimescaleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TimescaleWriter{db: db, logger: logger}
}

// EnsureSchema creates the tables if they do not exist.
func (w *TimescaleWriter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := w.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Stats returns cumulative metrics.
func (w *TimescaleWriter) Stats() TimescaleMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// Write implements Sink. Smile rows whose key is incomplete (no expiry or
// strike) cannot satisfy the table's primary key and are skipped.
func (w *TimescaleWriter) Write(ctx context.Context, b Batch) (Stats, error) {
	start := time.Now()

	batch := &pgx.Batch{}
	for _, r := range b.Raw {
		batch.Queue(insertSnapshot,
			r.SlotTime, r.ObservedTime, r.Underlying, r.InstrumentName, r.Expiry, r.Strike, r.OptionType.String(),
			r.Bid, r.Ask, r.Mid, r.IV, r.Delta, r.Gamma, r.Vega, r.Theta, r.Rho, r.IndexPrice, r.UnderlyingPrice,
		)
	}
	var skipped int
	for _, r := range b.Smiles {
		if r.Expiry == nil || r.Strike == nil {
			skipped++
			continue
		}
		batch.Queue(insertSmile,
			r.SlotTime, r.Underlying, *r.Expiry, r.OptionType.String(), *r.Strike,
			r.Bid, r.Ask, r.Mid, r.IV, r.Delta, r.Gamma, r.Vega, r.Theta, r.Rho, r.S, r.F, r.Spread, r.Moneyness, r.Count,
		)
	}

	queued := batch.Len()
	if queued == 0 {
		return Stats{}, nil
	}

	conflicts, err := w.send(ctx, batch, queued)

	w.mu.Lock()
	w.metrics.Skipped += int64(skipped)
	if err != nil {
		w.metrics.Errors++
	} else {
		w.metrics.Inserts += int64(queued - conflicts)
		w.metrics.Conflicts += int64(conflicts)
		w.metrics.Flushes++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("batch insert failed", "err", err, "count", queued)
		return Stats{}, fmt.Errorf("timescale insert: %w", err)
	}

	w.logger.Debug("flushed snapshot batch",
		"count", queued,
		"conflicts", conflicts,
		"skipped", skipped,
		"duration", time.Since(start),
	)
	return Stats{Rows: queued - conflicts, Conflicts: conflicts}, nil
}

// send executes a batch and counts statements that affected no rows.
func (w *TimescaleWriter) send(ctx context.Context, batch *pgx.Batch, n int) (conflicts int, err error) {
	results := w.db.SendBatch(ctx, batch)
	defer func() {
		if cerr := results.Close(); err == nil {
			err = cerr
		}
	}()

	for i := 0; i < n; i++ {
		ct, execErr := results.Exec()
		if execErr != nil {
			return 0, execErr
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}

var (
	_ Sink = (*TimescaleWriter)(nil)
	_ Sink = (*PartitionedWriter)(nil)
	_ Sink = Multi(nil)
)
