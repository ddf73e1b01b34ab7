// Package database provides the TimescaleDB connection pool used by the
// optional time-series sink.
//
// Snapshot and smile rows are always written as partition files. When
// database.timescale.enabled is set they are also inserted into the
// option_snapshots and option_smiles hypertables.
package database
