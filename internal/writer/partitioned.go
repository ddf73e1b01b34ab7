package writer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/deribit-smiles/internal/model"
)

// FileStampLayout is the slot timestamp embedded in file names.
const FileStampLayout = "20060102T150405"

// Encoder serializes one partition of a dataset.
type Encoder interface {
	EncodeSnapshots(w io.Writer, rows []model.RawSnapshotRow) error
	EncodeSmiles(w io.Writer, rows []model.SmileRow) error
	Ext() string // File extension without the dot
}

// PartitionConfig holds PartitionedWriter configuration.
type PartitionConfig struct {
	DataRoot     string
	RawDir       string // Relative to DataRoot (default: raw)
	ProcessedDir string // Relative to DataRoot (default: processed)
	Parallelism  int    // Partitions written concurrently (default: 4)
}

// DefaultPartitionConfig returns sensible defaults.
func DefaultPartitionConfig() PartitionConfig {
	return PartitionConfig{
		DataRoot:     "data",
		RawDir:       "raw",
		ProcessedDir: "processed",
		Parallelism:  4,
	}
}

// PartitionedWriter writes one file per dataset and underlying per cycle:
//
//	<root>/<raw>/date=YYYY-MM-DD/underlying=<U>/snapshot_<stamp>_<U>.<ext>
//	<root>/<processed>/date=YYYY-MM-DD/underlying=<U>/smile_<stamp>_<U>.<ext>
//
// The date and stamp come from the slot time (UTC).
type PartitionedWriter struct {
	cfg     PartitionConfig
	encoder Encoder
	logger  *slog.Logger

	mu      sync.Mutex
	metrics WriterMetrics
}

// WriterMetrics are cumulative counters for a writer.
type WriterMetrics struct {
	Files  int64
	Rows   int64
	Errors int64
}

// NewPartitionedWriter creates a new PartitionedWriter.
func NewPartitionedWriter(cfg PartitionConfig, encoder Encoder, logger *slog.Logger) *PartitionedWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &PartitionedWriter{cfg: cfg, encoder: encoder, logger: logger}
}

// Stats returns cumulative metrics.
func (w *PartitionedWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// SnapshotPath returns the raw dataset file for an underlying.
func (w *PartitionedWriter) SnapshotPath(slot time.Time, underlying string) string {
	return w.path(w.cfg.RawDir, "snapshot", slot, underlying)
}

// SmilePath returns the smile dataset file for an underlying.
func (w *PartitionedWriter) SmilePath(slot time.Time, underlying string) string {
	return w.path(w.cfg.ProcessedDir, "smile", slot, underlying)
}

func (w *PartitionedWriter) path(dataset, prefix string, slot time.Time, underlying string) string {
	slot = slot.UTC()
	name := fmt.Sprintf("%s_%s_%s.%s", prefix, slot.Format(FileStampLayout), underlying, w.encoder.Ext())
	return filepath.Join(
		w.cfg.DataRoot,
		dataset,
		"date="+slot.Format(time.DateOnly),
		"underlying="+underlying,
		name,
	)
}

// Write implements Sink. Partitions are written concurrently; an empty
// dataset writes nothing.
func (w *PartitionedWriter) Write(ctx context.Context, b Batch) (Stats, error) {
	start := time.Now()

	rawParts := groupByUnderlying(b.Raw, func(r model.RawSnapshotRow) string { return r.Underlying })
	smileParts := groupByUnderlying(b.Smiles, func(r model.SmileRow) string { return r.Underlying })

	if len(rawParts) == 0 {
		w.logger.Warn("empty snapshot dataset, nothing written", "slot", b.Slot)
	}
	if len(smileParts) == 0 {
		w.logger.Warn("empty smile dataset, nothing written", "slot", b.Slot)
	}

	var (
		mu    sync.Mutex
		stats Stats
	)
	record := func(path string, rows int) {
		mu.Lock()
		stats.Files++
		stats.Rows += rows
		stats.Paths = append(stats.Paths, path)
		mu.Unlock()
		w.logger.Debug("partition written", "path", path, "rows", rows)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Parallelism)

	for _, u := range sortedKeys(rawParts) {
		rows := rawParts[u]
		path := w.SnapshotPath(b.Slot, u)
		g.Go(func() error {
			err := writeAtomic(gctx, path, func(f io.Writer) error {
				return w.encoder.EncodeSnapshots(f, rows)
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			record(path, len(rows))
			return nil
		})
	}
	for _, u := range sortedKeys(smileParts) {
		rows := smileParts[u]
		path := w.SmilePath(b.Slot, u)
		g.Go(func() error {
			err := writeAtomic(gctx, path, func(f io.Writer) error {
				return w.encoder.EncodeSmiles(f, rows)
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			record(path, len(rows))
			return nil
		})
	}

	err := g.Wait()

	w.mu.Lock()
	w.metrics.Files += int64(stats.Files)
	w.metrics.Rows += int64(stats.Rows)
	if err != nil {
		w.metrics.Errors++
	}
	w.mu.Unlock()

	if err != nil {
		return stats, err
	}

	w.logger.Info("partitions written",
		"slot", b.Slot,
		"files", stats.Files,
		"raw_rows", len(b.Raw),
		"smile_rows", len(b.Smiles),
		"duration", time.Since(start),
	)
	return stats, nil
}

// writeAtomic writes to a temporary file next to path and renames it into place.
func writeAtomic(ctx context.Context, path string, encode func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp) // No-op after a successful rename.

	// Hide Close from the encoder; the file is closed here.
	if err := encode(struct{ io.Writer }{f}); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return os.Rename(tmp, path)
}

func groupByUnderlying[T any](rows []T, key func(T) string) map[string][]T {
	out := make(map[string][]T)
	for _, r := range rows {
		u := key(r)
		if u == "" {
			u = "UNKNOWN"
		}
		out[u] = append(out[u], r)
	}
	return out
}

func sortedKeys[T any](m map[string][]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
