package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rickgao/deribit-smiles/internal/api"
	"github.com/rickgao/deribit-smiles/internal/model"
)

// TickerSource fetches one ticker. *api.Client implements it and must be safe
// for concurrent use.
type TickerSource interface {
	GetTicker(ctx context.Context, instrument string) (*api.Ticker, error)
}

// Target is one instrument to fetch, labelled with the currency it was listed under.
type Target struct {
	Underlying     string
	InstrumentName string
}

// Config holds poller configuration.
type Config struct {
	MaxConcurrency int           // Max in-flight fetches (default: 8)
	DispatchDelay  time.Duration // Minimum gap between dispatches (default: 50ms)
	RequestTimeout time.Duration // Per-attempt timeout (default: 10s)
	MaxRetries     int           // Attempts per target, including the first (default: 3)
	RetryDelay     time.Duration // Fixed wait between attempts (default: 300ms)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		DispatchDelay:  50 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     3,
		RetryDelay:     300 * time.Millisecond,
	}
}

// FetchError records a target dropped after exhausting its attempts.
type FetchError struct {
	Target   Target
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts: %v", e.Target.InstrumentName, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one Gather call.
type Result struct {
	Rows       []model.RawSnapshotRow // Completion order
	Failures   []*FetchError
	Dispatched int // Targets dispatched before the context ended
	Retries    int // Attempts beyond the first, across all targets
	Duration   time.Duration
}

// Poller fetches tickers for a set of targets with bounded concurrency.
type Poller struct {
	cfg     Config
	source  TickerSource
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new Poller. The pacing limiter lives as long as the Poller,
// so pacing also holds across back-to-back Gather calls.
func New(cfg Config, source TickerSource, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	limit := rate.Inf
	if cfg.DispatchDelay > 0 {
		limit = rate.Every(cfg.DispatchDelay)
	}

	return &Poller{
		cfg:     cfg,
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
}

// Gather fetches every target and builds one raw row per successful fetch.
//
// Targets are dispatched in input order. A target whose attempts all fail is
// omitted from Rows and recorded in Failures; Gather itself never fails.
// Cancelling ctx stops further dispatches and aborts in-flight attempts.
func (p *Poller) Gather(ctx context.Context, slot time.Time, targets []Target) Result {
	start := p.now()

	sem := semaphore.NewWeighted(int64(p.cfg.MaxConcurrency))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		res      Result
		retries  atomic.Int64
		fetched  atomic.Int64
		failures atomic.Int64
	)

	for _, target := range targets {
		// Acquire before pacing so the gap is measured between actual dispatches.
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if err := p.limiter.Wait(ctx); err != nil {
			sem.Release(1)
			break
		}
		res.Dispatched++

		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			defer sem.Release(1)

			ticker, attempts, err := p.fetch(ctx, t)
			retries.Add(int64(attempts - 1))
			if err != nil {
				fe := &FetchError{Target: t, Attempts: attempts, Err: err}
				p.logger.Warn("instrument dropped",
					"instrument", t.InstrumentName,
					"attempts", attempts,
					"err", err,
				)
				failures.Add(1)
				mu.Lock()
				res.Failures = append(res.Failures, fe)
				mu.Unlock()
				return
			}

			row := api.BuildRow(slot, p.now(), t.Underlying, t.InstrumentName, ticker)
			fetched.Add(1)
			mu.Lock()
			res.Rows = append(res.Rows, row)
			mu.Unlock()
		}(target)
	}

	wg.Wait()

	res.Retries = int(retries.Load())
	res.Duration = p.now().Sub(start)

	p.logger.Info("gather complete",
		"slot", slot.UTC(),
		"targets", len(targets),
		"dispatched", res.Dispatched,
		"fetched", fetched.Load(),
		"failed", failures.Load(),
		"retries", res.Retries,
		"duration", res.Duration,
	)

	return res
}

// fetch makes up to MaxRetries attempts, waiting RetryDelay between them.
// It returns the number of attempts made.
func (p *Poller) fetch(ctx context.Context, t Target) (*api.Ticker, int, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		ticker, err := p.attempt(ctx, t.InstrumentName)
		if err == nil {
			return ticker, attempt, nil
		}
		lastErr = err

		if attempt == p.cfg.MaxRetries {
			return nil, attempt, lastErr
		}

		p.logger.Debug("retrying ticker",
			"instrument", t.InstrumentName,
			"attempt", attempt,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return nil, attempt, ctx.Err()
		case <-time.After(p.cfg.RetryDelay):
		}
	}
	return nil, p.cfg.MaxRetries, lastErr
}

func (p *Poller) attempt(ctx context.Context, instrument string) (*api.Ticker, error) {
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}
	return p.source.GetTicker(ctx, instrument)
}
