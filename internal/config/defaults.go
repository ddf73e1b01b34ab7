package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL            = "https://www.deribit.com/api/v2"
	DefaultAPITimeout         = 30 * time.Second
	DefaultAPIMaxRetries      = 3
	DefaultAPIRetryBackoff    = 1 * time.Second
	DefaultRawDir             = "raw"
	DefaultProcessedDir       = "processed"
	DefaultCompression        = "zstd"
	DefaultRowGroupSize       = 200_000
	DefaultMaxConcurrency     = 8
	DefaultRequestTimeoutSec  = 10
	DefaultMaxRetries         = 3
	DefaultWriteParallelism   = 4
	DefaultMoneynessReference = "underlying_price"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

// applyDefaults fills optional fields. per_request_delay_ms and retry_delay_ms
// have no default: 0 disables pacing and the retry wait.
func (c *GathererConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultAPIMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultAPIRetryBackoff
	}

	// IO defaults
	if c.IO.RawDir == "" {
		c.IO.RawDir = DefaultRawDir
	}
	if c.IO.ProcessedDir == "" {
		c.IO.ProcessedDir = DefaultProcessedDir
	}
	if c.IO.Format.Compression == "" {
		c.IO.Format.Compression = DefaultCompression
	}
	if c.IO.Format.RowGroupSize == 0 {
		c.IO.Format.RowGroupSize = DefaultRowGroupSize
	}

	// Runtime defaults
	if c.Runtime.MaxConcurrency == 0 {
		c.Runtime.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Runtime.RequestTimeoutSec == 0 {
		c.Runtime.RequestTimeoutSec = DefaultRequestTimeoutSec
	}
	if c.Runtime.MaxRetries == 0 {
		c.Runtime.MaxRetries = DefaultMaxRetries
	}
	if c.Runtime.WriteParallelism == 0 {
		c.Runtime.WriteParallelism = DefaultWriteParallelism
	}

	// QC defaults
	if c.QC.MoneynessReference == "" {
		c.QC.MoneynessReference = DefaultMoneynessReference
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
