package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rickgao/deribit-smiles/internal/api"
	"github.com/rickgao/deribit-smiles/internal/config"
	"github.com/rickgao/deribit-smiles/internal/database"
	"github.com/rickgao/deribit-smiles/internal/market"
	"github.com/rickgao/deribit-smiles/internal/metrics"
	"github.com/rickgao/deribit-smiles/internal/poller"
	"github.com/rickgao/deribit-smiles/internal/qc"
	"github.com/rickgao/deribit-smiles/internal/scheduler"
	"github.com/rickgao/deribit-smiles/internal/snapshot"
	"github.com/rickgao/deribit-smiles/internal/version"
	"github.com/rickgao/deribit-smiles/internal/writer"
)

// gatherer wires the components of one process.
type gatherer struct {
	cfg       *config.GathererConfig
	logger    *slog.Logger
	registry  *prometheus.Registry
	pool      *pgxpool.Pool
	universe  *market.Universe
	files     *writer.PartitionedWriter
	timescale *writer.TimescaleWriter
	scheduler *scheduler.Scheduler
}

func newGatherer(ctx context.Context, cfg *config.GathererConfig, logger *slog.Logger) (*gatherer, error) {
	g := &gatherer{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	g.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(g.registry)

	ref, err := qc.ParseReference(cfg.QC.MoneynessReference)
	if err != nil {
		return nil, err
	}
	limits := qc.ResolveLimits(cfg.QC.LimitsFile, logger)
	logger.Info("qc limits resolved",
		"iv_min", limits.IVMin,
		"iv_max", limits.IVMax,
		"delta_min", limits.DeltaMin,
		"delta_max", limits.DeltaMax,
		"spread_rel_max", limits.SpreadRelMax,
		"moneyness_reference", ref,
	)

	// One client is shared by the catalog and every ticker fetch
	client := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithUserAgent(version.UserAgent()),
	)

	g.universe = market.NewUniverse(market.Config{
		Currencies:     cfg.Universe.Currencies,
		Kind:           cfg.Universe.Kind,
		IncludeExpired: cfg.Universe.IncludeExpired,
		MaxPerCurrency: cfg.Filters.MaxInstrumentsPerCurrency,
	}, client, logger)

	p := poller.New(poller.Config{
		MaxConcurrency: cfg.Runtime.MaxConcurrency,
		DispatchDelay:  cfg.Runtime.PerRequestDelay(),
		RequestTimeout: cfg.Runtime.RequestTimeout(),
		MaxRetries:     cfg.Runtime.MaxRetries,
		RetryDelay:     cfg.Runtime.RetryDelay(),
	}, client, logger)

	sink, err := g.newSink(ctx)
	if err != nil {
		return nil, err
	}

	runner := snapshot.NewRunner(snapshot.Config{Limits: limits, Reference: ref}, g.universe, p, sink, m, logger)

	g.scheduler, err = scheduler.New(cfg.Schedule.IntervalMinutes, runner.Cycle, logger)
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// newSink builds the partitioned file sink and, when enabled, the
// TimescaleDB sink.
func (g *gatherer) newSink(ctx context.Context) (writer.Sink, error) {
	format := g.cfg.IO.Format
	enc, err := writer.NewParquetEncoder(writer.FormatConfig{
		Compression:   format.Compression,
		RowGroupSize:  format.RowGroupSize,
		UseDictionary: format.DictionaryEnabled(),
	})
	if err != nil {
		return nil, fmt.Errorf("parquet encoder: %w", err)
	}

	g.files = writer.NewPartitionedWriter(writer.PartitionConfig{
		DataRoot:     g.cfg.IO.DataRoot,
		RawDir:       g.cfg.IO.RawDir,
		ProcessedDir: g.cfg.IO.ProcessedDir,
		Parallelism:  g.cfg.Runtime.WriteParallelism,
	}, enc, g.logger)
	sinks := writer.Multi{g.files}

	ts := g.cfg.Database.Timescale
	if !ts.Enabled {
		return sinks, nil
	}

	g.logger.Info("connecting to database",
		"host", ts.Host,
		"port", ts.Port,
		"database", ts.Name,
	)
	g.pool, err = database.Connect(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("connect timescale: %w", err)
	}

	g.timescale = writer.NewTimescaleWriter(g.pool, g.logger)
	if err := g.timescale.EnsureSchema(ctx); err != nil {
		g.pool.Close()
		g.pool = nil
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	g.logger.Info("database connected")

	return append(sinks, g.timescale), nil
}

// Run runs one cycle or the scheduler loop. The metrics server, when
// enabled, lives until Run returns.
func (g *gatherer) Run(ctx context.Context, once bool) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if g.cfg.Metrics.Enabled {
		h := metrics.Handler(g.cfg.Metrics.Path, g.registry, g.health)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(runCtx, g.cfg.Metrics.Port, h, g.logger); err != nil {
				g.logger.Error("metrics server error", "err", err)
			}
		}()
	}

	var err error
	if once {
		err = g.scheduler.RunOnce(runCtx)
	} else {
		err = g.scheduler.Run(runCtx)
	}

	cancel()
	wg.Wait()
	return err
}

func (g *gatherer) health(ctx context.Context) error {
	interval := time.Duration(g.cfg.Schedule.IntervalMinutes) * time.Minute
	if err := checkUniverseFresh(g.universe.LastLoadAt(), time.Now(), interval); err != nil {
		return err
	}
	if g.pool == nil {
		return nil
	}
	if err := g.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping timescale: %w", err)
	}
	return nil
}

// checkUniverseFresh fails once two slots have passed without a catalog
// listing. Before the first listing the gatherer is still waiting for its
// first slot and counts as healthy.
func checkUniverseFresh(last, now time.Time, interval time.Duration) error {
	if last.IsZero() {
		return nil
	}
	if age := now.Sub(last); age > 2*interval {
		return fmt.Errorf("universe last listed %s ago", age.Truncate(time.Second))
	}
	return nil
}

// Close logs cumulative sink totals and releases the database pool.
func (g *gatherer) Close() {
	if g.files != nil {
		st := g.files.Stats()
		g.logger.Info("file sink totals", "files", st.Files, "rows", st.Rows, "errors", st.Errors)
	}
	if g.timescale != nil {
		st := g.timescale.Stats()
		g.logger.Info("timescale sink totals",
			"inserts", st.Inserts,
			"conflicts", st.Conflicts,
			"skipped", st.Skipped,
			"errors", st.Errors,
			"flushes", st.Flushes,
		)
	}
	if g.pool != nil {
		g.pool.Close()
		g.pool = nil
	}
}
