package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/deribit-smiles/internal/market"
	"github.com/rickgao/deribit-smiles/internal/metrics"
	"github.com/rickgao/deribit-smiles/internal/model"
	"github.com/rickgao/deribit-smiles/internal/normalize"
	"github.com/rickgao/deribit-smiles/internal/poller"
	"github.com/rickgao/deribit-smiles/internal/qc"
	"github.com/rickgao/deribit-smiles/internal/smile"
	"github.com/rickgao/deribit-smiles/internal/writer"
)

// TargetLoader lists the instruments to poll. *market.Universe implements it.
type TargetLoader interface {
	Load(ctx context.Context) ([]poller.Target, []*market.CatalogError)
	Counts() map[string]int // Instruments kept per currency by the last Load
}

// Gatherer fetches tickers for a slot. *poller.Poller implements it.
type Gatherer interface {
	Gather(ctx context.Context, slot time.Time, targets []poller.Target) poller.Result
}

// Config holds the read-only settings shared by every cycle.
type Config struct {
	Limits    qc.Limits
	Reference qc.Reference
}

// Summary describes one completed cycle.
type Summary struct {
	CycleID       string
	Slot          time.Time
	Targets       int
	Instruments   map[string]int // Per currency
	CatalogErrors int
	RawRows       int
	FetchFailures int
	Retries       int
	CanonicalRows int
	SmileRows     int
	QC            qc.Report
	Written       writer.Stats
	Duration      time.Duration
}

// Runner executes gather cycles.
type Runner struct {
	cfg      Config
	universe TargetLoader
	gatherer Gatherer
	sink     writer.Sink
	metrics  *metrics.Collectors
	logger   *slog.Logger

	now func() time.Time
}

// NewRunner creates a new Runner. m may be nil.
func NewRunner(
	cfg Config,
	universe TargetLoader,
	gatherer Gatherer,
	sink writer.Sink,
	m *metrics.Collectors,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Reference == "" {
		cfg.Reference = qc.ReferenceUnderlying
	}
	return &Runner{
		cfg:      cfg,
		universe: universe,
		gatherer: gatherer,
		sink:     sink,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Cycle adapts RunCycle to scheduler.CycleFunc.
func (r *Runner) Cycle(ctx context.Context, slot time.Time) error {
	_, err := r.RunCycle(ctx, slot)
	return err
}

// RunCycle runs one full cycle for slot.
//
// Catalog and fetch failures degrade the cycle without failing it. When the
// raw rows cannot be canonicalized the raw dataset is still written and the
// smile dataset is skipped. Only a sink error or cancellation is returned.
func (r *Runner) RunCycle(ctx context.Context, slot time.Time) (Summary, error) {
	start := r.now()
	sum := Summary{
		CycleID: uuid.NewString(),
		Slot:    slot.UTC(),
	}
	logger := r.logger.With("cycle_id", sum.CycleID, "slot", sum.Slot)

	err := r.run(ctx, logger, &sum)
	sum.Duration = r.now().Sub(start)
	r.metrics.ObserveCycle(sum.Slot, sum.Duration, err)

	if err != nil {
		return sum, err
	}

	logger.Info("snapshot summary",
		"targets", sum.Targets,
		"instruments", sum.Instruments,
		"raw_rows", sum.RawRows,
		"fetch_failures", sum.FetchFailures,
		"retries", sum.Retries,
		"catalog_errors", sum.CatalogErrors,
		"canonical_rows", sum.CanonicalRows,
		"smile_rows", sum.SmileRows,
		"files", sum.Written.Files,
		"rows_written", sum.Written.Rows,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, sum *Summary) error {
	targets, catalogErrs := r.universe.Load(ctx)
	sum.Targets = len(targets)
	sum.Instruments = r.universe.Counts()
	sum.CatalogErrors = len(catalogErrs)
	r.metrics.ObserveUniverse(sum.Instruments)
	for _, ce := range catalogErrs {
		r.metrics.ObserveCatalogError(ce.Currency)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	res := r.gatherer.Gather(ctx, sum.Slot, targets)
	sum.RawRows = len(res.Rows)
	sum.FetchFailures = len(res.Failures)
	sum.Retries = res.Retries
	r.metrics.ObserveGather(len(targets), len(res.Rows), len(res.Failures), res.Retries)
	for _, fe := range res.Failures {
		logger.Debug("instrument dropped",
			"instrument", fe.Target.InstrumentName,
			"attempts", fe.Attempts,
			"err", fe.Err,
		)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	smiles := r.process(logger, sum, res.Rows)

	stats, err := r.sink.Write(ctx, writer.Batch{
		Slot:   sum.Slot,
		Raw:    res.Rows,
		Smiles: smiles,
	})
	sum.Written = stats
	r.metrics.ObserveWrite(stats.Files, stats.Rows, err)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// process cleans, assesses and aggregates the raw rows. It returns nil
// smiles when the rows cannot be canonicalized.
func (r *Runner) process(logger *slog.Logger, sum *Summary, raw []model.RawSnapshotRow) []model.SmileRow {
	if len(raw) == 0 {
		logger.Warn("no raw rows gathered")
		return nil
	}

	canonical, err := qc.Clean(normalize.FromRawRows(raw), r.cfg.Limits, r.cfg.Reference)
	if err != nil {
		var se *normalize.SchemaError
		var te *normalize.TimestampError
		switch {
		case errors.As(err, &se):
			logger.Error("canonical schema incomplete, skipping smiles", "missing", se.Missing)
		case errors.As(err, &te):
			logger.Error("bad timestamp, skipping smiles", "err", te)
		default:
			logger.Error("clean failed, skipping smiles", "err", err)
		}
		return nil
	}
	sum.CanonicalRows = len(canonical)

	sum.QC = qc.Assess(canonical, r.cfg.Limits)
	for _, c := range sum.QC.Checks {
		r.metrics.ObserveQC(c.Name, c.Rate)
		if c.Failed > 0 {
			logger.Info("qc check", "check", c.Name, "failed", c.Failed, "rate", c.Rate)
		}
	}

	smiles := smile.Build(canonical)
	sum.SmileRows = len(smiles)
	r.metrics.ObserveSmiles(len(smiles))
	return smiles
}
