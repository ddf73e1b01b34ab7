// Package model defines shared data types used across the smile gatherer.
//
// Conventions:
//   - Times: time.Time in UTC; slot times are aligned cycle boundaries
//   - Prices: float64 in the instrument's quote currency
//   - IV: fractional (0.55 = 55%), never percent
//   - Nullable numerics: *float64, nil means "not observed"
package model
