// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Cycle counts, outcomes and durations
//   - Raw and smile rows produced per cycle
//   - Ticker fetch failures and retries
//   - Catalog errors per currency
//   - QC check failure rates
//   - Files and rows written by the sinks
//
// Serve exposes the registry on a small chi router together with a
// liveness endpoint.
package metrics
