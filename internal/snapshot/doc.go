// Package snapshot runs one gather cycle end to end.
//
// A cycle lists the universe, fetches every ticker, normalizes and cleans
// the raw rows, aggregates smiles and hands both datasets to the sink:
//
//	Universe.Load -> Poller.Gather -> qc.Clean -> qc.Assess -> smile.Build -> Sink.Write
//
// The Runner is the explicit run context: the shared API client (through
// the universe and poller), the pacing limiter (inside the poller), the QC
// limits and the sink are all held here and passed to every cycle.
package snapshot
