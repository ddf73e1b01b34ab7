package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smiles"

// Cycle outcomes used as the "status" label.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Collectors holds the gatherer's metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	LastSlot      prometheus.Gauge
	Targets       prometheus.Gauge
	Instruments   *prometheus.GaugeVec
	RawRows       prometheus.Counter
	SmileRows     prometheus.Counter
	FetchFailures prometheus.Counter
	FetchRetries  prometheus.Counter
	CatalogErrors *prometheus.CounterVec
	QCFailRate    *prometheus.GaugeVec
	FilesWritten  prometheus.Counter
	RowsWritten   prometheus.Counter
	WriteErrors   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Snapshot cycles run, by outcome.",
		}, []string{"status"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a snapshot cycle.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		LastSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_slot_timestamp_seconds",
			Help:      "Slot time of the last completed cycle.",
		}),
		Targets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "targets",
			Help:      "Instruments dispatched in the last cycle.",
		}),
		Instruments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "universe_instruments",
			Help:      "Instruments kept per currency by the last catalog listing.",
		}, []string{"currency"}),
		RawRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_rows_total",
			Help:      "Raw snapshot rows gathered.",
		}),
		SmileRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "smile_rows_total",
			Help:      "Aggregated smile rows produced.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Tickers dropped after exhausting retries.",
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Ticker fetch attempts beyond the first.",
		}),
		CatalogErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_errors_total",
			Help:      "Failed instrument listings, by currency.",
		}, []string{"currency"}),
		QCFailRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "qc_fail_rate",
			Help:      "Fraction of canonical rows failing each QC check in the last cycle.",
		}, []string{"check"}),
		FilesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_written_total",
			Help:      "Partition files committed.",
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows committed by all sinks.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Cycles whose sink write returned an error.",
		}),
	}

	reg.MustRegister(
		c.Cycles, c.CycleDuration, c.LastSlot, c.Targets, c.Instruments,
		c.RawRows, c.SmileRows, c.FetchFailures, c.FetchRetries,
		c.CatalogErrors, c.QCFailRate,
		c.FilesWritten, c.RowsWritten, c.WriteErrors,
	)
	return c
}

// ObserveCycle records the outcome and duration of one cycle.
func (c *Collectors) ObserveCycle(slot time.Time, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	c.Cycles.WithLabelValues(status).Inc()
	c.CycleDuration.Observe(d.Seconds())
	if err == nil {
		c.LastSlot.Set(float64(slot.Unix()))
	}
}

// ObserveGather records the fetch stage.
func (c *Collectors) ObserveGather(targets, rows, failures, retries int) {
	if c == nil {
		return
	}
	c.Targets.Set(float64(targets))
	c.RawRows.Add(float64(rows))
	c.FetchFailures.Add(float64(failures))
	c.FetchRetries.Add(float64(retries))
}

// ObserveUniverse sets the per-currency instrument counts.
func (c *Collectors) ObserveUniverse(counts map[string]int) {
	if c == nil {
		return
	}
	for currency, n := range counts {
		c.Instruments.WithLabelValues(currency).Set(float64(n))
	}
}

// ObserveCatalogError counts a failed listing.
func (c *Collectors) ObserveCatalogError(currency string) {
	if c == nil {
		return
	}
	c.CatalogErrors.WithLabelValues(currency).Inc()
}

// ObserveQC sets the failure rate of one check.
func (c *Collectors) ObserveQC(check string, rate float64) {
	if c == nil {
		return
	}
	c.QCFailRate.WithLabelValues(check).Set(rate)
}

// ObserveSmiles counts aggregated rows.
func (c *Collectors) ObserveSmiles(rows int) {
	if c == nil {
		return
	}
	c.SmileRows.Add(float64(rows))
}

// ObserveWrite records sink output.
func (c *Collectors) ObserveWrite(files, rows int, err error) {
	if c == nil {
		return
	}
	c.FilesWritten.Add(float64(files))
	c.RowsWritten.Add(float64(rows))
	if err != nil {
		c.WriteErrors.Inc()
	}
}
