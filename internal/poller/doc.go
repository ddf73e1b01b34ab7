// Package poller implements the bounded ticker fetcher.
//
// For one slot the Poller:
//   - Dispatches one fetch per target in input order, paced by a rate limiter
//   - Keeps at most MaxConcurrency fetches in flight (weighted semaphore)
//   - Retries each fetch with a fixed delay, up to MaxRetries attempts in total
//   - Drops targets whose attempts are exhausted and records the failure
//
// Rows are returned in completion order.
package poller
