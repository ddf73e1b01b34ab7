// Package config loads the gatherer's YAML configuration.
package config

import "time"

// GathererConfig is the root configuration for a gatherer instance.
type GathererConfig struct {
	Schedule ScheduleConfig `yaml:"schedule"`
	Universe UniverseConfig `yaml:"universe"`
	Filters  FiltersConfig  `yaml:"filters"`
	IO       IOConfig       `yaml:"io"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	API      APIConfig      `yaml:"api"`
	QC       QCConfig       `yaml:"qc"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ScheduleConfig sets the slot grid.
type ScheduleConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" validate:"required,min=1,max=60"`
}

// UniverseConfig selects the instruments listed each cycle.
type UniverseConfig struct {
	Currencies     []string `yaml:"currencies" validate:"required,min=1,dive,required"`
	Kind           string   `yaml:"kind" validate:"required,oneof=option future spot future_combo option_combo"`
	IncludeExpired bool     `yaml:"include_expired"`
}

// FiltersConfig trims the listed universe.
type FiltersConfig struct {
	MaxInstrumentsPerCurrency int `yaml:"max_instruments_per_currency" validate:"min=0"` // 0 = no cap
}

// IOConfig holds output locations and encoding.
type IOConfig struct {
	DataRoot     string       `yaml:"data_root" validate:"required"`
	RawDir       string       `yaml:"raw_dir"`
	ProcessedDir string       `yaml:"processed_dir"`
	Format       FormatConfig `yaml:"format"`
}

// FormatConfig holds columnar file settings.
type FormatConfig struct {
	Compression   string `yaml:"compression"`
	RowGroupSize  int    `yaml:"row_group_size" validate:"min=0"`
	UseDictionary *bool  `yaml:"use_dictionary"` // nil = default (true)
}

// DictionaryEnabled reports whether dictionary encoding is on.
func (f FormatConfig) DictionaryEnabled() bool {
	return f.UseDictionary == nil || *f.UseDictionary
}

// RuntimeConfig holds fetch concurrency, pacing and retry settings.
type RuntimeConfig struct {
	MaxConcurrency    int `yaml:"max_concurrency" validate:"min=0"`
	PerRequestDelayMs int `yaml:"per_request_delay_ms" validate:"min=0"`
	RequestTimeoutSec int `yaml:"request_timeout_s" validate:"min=0"`
	MaxRetries        int `yaml:"max_retries" validate:"min=0"`
	RetryDelayMs      int `yaml:"retry_delay_ms" validate:"min=0"`
	WriteParallelism  int `yaml:"write_parallelism" validate:"min=0"`
}

// PerRequestDelay is the pacing gap between dispatches.
func (r RuntimeConfig) PerRequestDelay() time.Duration {
	return time.Duration(r.PerRequestDelayMs) * time.Millisecond
}

// RequestTimeout is the per-attempt timeout.
func (r RuntimeConfig) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutSec) * time.Second
}

// RetryDelay is the fixed wait between attempts.
func (r RuntimeConfig) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// APIConfig holds Deribit REST settings.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url" validate:"omitempty,url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries" validate:"min=0"` // Catalog requests only
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// QCConfig holds quality-control settings. Limits are resolved by the qc
// package from limits_file, $QC_CONFIG or qc.yml/qc.yaml.
type QCConfig struct {
	LimitsFile         string `yaml:"limits_file"`         // Explicit limits source, tried before $QC_CONFIG and qc.yml
	MoneynessReference string `yaml:"moneyness_reference"` // underlying_price or index_price
}

// DatabaseConfig holds the optional TimescaleDB sink.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
