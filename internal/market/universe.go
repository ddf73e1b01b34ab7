package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/deribit-smiles/internal/api"
	"github.com/rickgao/deribit-smiles/internal/poller"
)

// Catalog lists instruments. *api.Client implements it.
type Catalog interface {
	GetInstruments(ctx context.Context, opts api.GetInstrumentsOptions) ([]api.Instrument, error)
}

// Config holds universe configuration.
type Config struct {
	Currencies     []string
	Kind           string // option, future, ... empty for all kinds
	IncludeExpired bool
	MaxPerCurrency int // 0 means no cap
}

// CatalogError reports a failed listing for one currency.
type CatalogError struct {
	Currency string
	Err      error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Currency, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Universe lists the instruments to poll.
type Universe struct {
	cfg     Config
	catalog Catalog
	logger  *slog.Logger

	mu         sync.RWMutex
	counts     map[string]int
	lastLoadAt time.Time
}

// NewUniverse creates a new Universe.
func NewUniverse(cfg Config, catalog Catalog, logger *slog.Logger) *Universe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Universe{
		cfg:     cfg,
		catalog: catalog,
		logger:  logger,
		counts:  make(map[string]int),
	}
}

// Load lists every configured currency in order and returns the targets.
// Targets keep currency order, then catalog order within a currency.
func (u *Universe) Load(ctx context.Context) ([]poller.Target, []*CatalogError) {
	start := time.Now()

	var (
		targets []poller.Target
		errs    []*CatalogError
		counts  = make(map[string]int, len(u.cfg.Currencies))
	)

	for _, currency := range u.cfg.Currencies {
		instruments, err := u.catalog.GetInstruments(ctx, api.GetInstrumentsOptions{
			Currency: currency,
			Kind:     u.cfg.Kind,
			Expired:  u.cfg.IncludeExpired,
		})
		if err != nil {
			ce := &CatalogError{Currency: currency, Err: err}
			u.logger.Error("instrument listing failed", "currency", currency, "err", err)
			errs = append(errs, ce)
			counts[currency] = 0
			continue
		}

		listed := len(instruments)
		if u.cfg.MaxPerCurrency > 0 && listed > u.cfg.MaxPerCurrency {
			instruments = instruments[:u.cfg.MaxPerCurrency]
		}
		for _, inst := range instruments {
			targets = append(targets, poller.Target{
				Underlying:     currency,
				InstrumentName: inst.InstrumentName,
			})
		}
		counts[currency] = len(instruments)

		u.logger.Debug("instruments listed",
			"currency", currency,
			"listed", listed,
			"kept", len(instruments),
		)
	}

	u.mu.Lock()
	u.counts = counts
	u.lastLoadAt = time.Now()
	u.mu.Unlock()

	u.logger.Info("universe loaded",
		"currencies", len(u.cfg.Currencies),
		"instruments", len(targets),
		"failed_currencies", len(errs),
		"duration", time.Since(start),
	)

	return targets, errs
}

// Counts returns the number of instruments kept per currency by the last Load.
func (u *Universe) Counts() map[string]int {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}

// LastLoadAt returns when Load last completed.
func (u *Universe) LastLoadAt() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastLoadAt
}
