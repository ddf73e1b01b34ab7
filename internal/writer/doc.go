// Package writer persists each cycle's raw snapshot and smile datasets.
//
// Sinks:
//   - PartitionedWriter: columnar files under date=YYYY-MM-DD/underlying=<U>/
//   - TimescaleWriter: option_snapshots and option_smiles tables (TimescaleDB)
//   - Multi: fans one batch out to several sinks
//
// All sinks use append-only semantics. Files are written under a temporary
// name and renamed into place; table inserts use ON CONFLICT DO NOTHING.
package writer
