// Package normalize turns heterogeneous snapshot records into the canonical schema.
//
// The working set is a Frame: an ordered column set plus rows of loosely typed
// Records. A column exists at frame level even when individual rows hold nil.
//
// Pipeline (Standardize):
//   - Coalesce: alias columns into canonical names, coerce timestamps, option types, numerics
//   - ParseAndFillInstrumentFields: fill kind/maturity/option_type/strike/underlying from the name
//   - Dedupe: one row per (instrument_name, slot_time_utc), last writer wins
//
// Canonicalize projects the frame onto the fixed canonical column list.
package normalize
