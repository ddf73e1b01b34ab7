// Package qc applies quality control to standardized snapshot frames.
//
// Limits are resolved once per run (ResolveLimits) and shared read-only.
// Clean runs the full chain from a raw frame to canonical rows; Assess
// summarizes how many canonical rows fail each plausibility check.
package qc
