package writer

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/deribit-smiles/internal/model"
)

// Batch is everything one cycle persists.
type Batch struct {
	Slot   time.Time
	Raw    []model.RawSnapshotRow
	Smiles []model.SmileRow
}

// Stats describes what a sink wrote for one batch.
type Stats struct {
	Files     int      // Files created (file sinks)
	Rows      int      // Rows written across both datasets
	Conflicts int      // Rows skipped as duplicates (table sinks)
	Paths     []string // Created files, in no particular order
}

func (s *Stats) add(o Stats) {
	s.Files += o.Files
	s.Rows += o.Rows
	s.Conflicts += o.Conflicts
	s.Paths = append(s.Paths, o.Paths...)
}

// Sink persists a cycle's datasets.
type Sink interface {
	Write(ctx context.Context, b Batch) (Stats, error)
}

// Multi writes every batch to all sinks in order. Stats are summed; errors
// from individual sinks are joined and do not stop the remaining sinks.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, b Batch) (Stats, error) {
	var (
		total Stats
		errs  []error
	)
	for _, s := range m {
		st, err := s.Write(ctx, b)
		total.add(st)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}
