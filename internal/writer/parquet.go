package writer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/rickgao/deribit-smiles/internal/model"
)

// FormatConfig controls the columnar encoding.
type FormatConfig struct {
	Compression   string // snappy, zstd, gzip, brotli, lz4, none (default: snappy)
	RowGroupSize  int    // Max rows per row group (default: 64k)
	UseDictionary bool
}

var codecs = map[string]compress.Compression{
	"":             compress.Codecs.Snappy,
	"snappy":       compress.Codecs.Snappy,
	"zstd":         compress.Codecs.Zstd,
	"gzip":         compress.Codecs.Gzip,
	"brotli":       compress.Codecs.Brotli,
	"lz4":          compress.Codecs.Lz4Raw,
	"none":         compress.Codecs.Uncompressed,
	"uncompressed": compress.Codecs.Uncompressed,
}

// ParquetEncoder encodes datasets as parquet files.
type ParquetEncoder struct {
	props *parquet.WriterProperties
	mem   memory.Allocator
}

// NewParquetEncoder creates a new ParquetEncoder.
func NewParquetEncoder(cfg FormatConfig) (*ParquetEncoder, error) {
	codec, ok := codecs[strings.ToLower(cfg.Compression)]
	if !ok {
		return nil, fmt.Errorf("unknown compression %q", cfg.Compression)
	}
	opts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithDictionaryDefault(cfg.UseDictionary),
	}
	if cfg.RowGroupSize > 0 {
		opts = append(opts, parquet.WithMaxRowGroupLength(int64(cfg.RowGroupSize)))
	}
	return &ParquetEncoder{
		props: parquet.NewWriterProperties(opts...),
		mem:   memory.DefaultAllocator,
	}, nil
}

// Ext implements Encoder.
func (e *ParquetEncoder) Ext() string { return "parquet" }

// column describes one output column and how to append a row's value to it.
type column[T any] struct {
	field  arrow.Field
	append func(b array.Builder, row T)
}

func timeCol[T any](name string, get func(T) *time.Time) column[T] {
	return column[T]{
		field: arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Timestamp_ms, Nullable: true},
		append: func(b array.Builder, row T) {
			tb := b.(*array.TimestampBuilder)
			if t := get(row); t != nil {
				tb.Append(arrow.Timestamp(t.UnixMilli()))
			} else {
				tb.AppendNull()
			}
		},
	}
}

func stringCol[T any](name string, get func(T) string) column[T] {
	return column[T]{
		field: arrow.Field{Name: name, Type: arrow.BinaryTypes.String},
		append: func(b array.Builder, row T) {
			b.(*array.StringBuilder).Append(get(row))
		},
	}
}

func floatCol[T any](name string, get func(T) *float64) column[T] {
	return column[T]{
		field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		append: func(b array.Builder, row T) {
			fb := b.(*array.Float64Builder)
			if v := get(row); v != nil {
				fb.Append(*v)
			} else {
				fb.AppendNull()
			}
		},
	}
}

func intCol[T any](name string, get func(T) int) column[T] {
	return column[T]{
		field: arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64},
		append: func(b array.Builder, row T) {
			b.(*array.Int64Builder).Append(int64(get(row)))
		},
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

var snapshotColumns = []column[model.RawSnapshotRow]{
	timeCol("slot_time_utc", func(r model.RawSnapshotRow) *time.Time { return ptrTime(r.SlotTime) }),
	timeCol("timestamp_utc", func(r model.RawSnapshotRow) *time.Time { return ptrTime(r.ObservedTime) }),
	stringCol("underlying", func(r model.RawSnapshotRow) string { return r.Underlying }),
	stringCol("instrument_name", func(r model.RawSnapshotRow) string { return r.InstrumentName }),
	timeCol("expiry_utc", func(r model.RawSnapshotRow) *time.Time { return r.Expiry }),
	floatCol("strike", func(r model.RawSnapshotRow) *float64 { return r.Strike }),
	stringCol("option_type", func(r model.RawSnapshotRow) string { return r.OptionType.String() }),
	floatCol("bid", func(r model.RawSnapshotRow) *float64 { return r.Bid }),
	floatCol("ask", func(r model.RawSnapshotRow) *float64 { return r.Ask }),
	floatCol("mid", func(r model.RawSnapshotRow) *float64 { return r.Mid }),
	floatCol("iv", func(r model.RawSnapshotRow) *float64 { return r.IV }),
	floatCol("delta", func(r model.RawSnapshotRow) *float64 { return r.Delta }),
	floatCol("gamma", func(r model.RawSnapshotRow) *float64 { return r.Gamma }),
	floatCol("vega", func(r model.RawSnapshotRow) *float64 { return r.Vega }),
	floatCol("theta", func(r model.RawSnapshotRow) *float64 { return r.Theta }),
	floatCol("rho", func(r model.RawSnapshotRow) *float64 { return r.Rho }),
	floatCol("index_price", func(r model.RawSnapshotRow) *float64 { return r.IndexPrice }),
	floatCol("underlying_price", func(r model.RawSnapshotRow) *float64 { return r.UnderlyingPrice }),
}

var smileColumns = []column[model.SmileRow]{
	timeCol("slot_time_utc", func(r model.SmileRow) *time.Time { return ptrTime(r.SlotTime) }),
	stringCol("underlying", func(r model.SmileRow) string { return r.Underlying }),
	timeCol("expiry_utc", func(r model.SmileRow) *time.Time { return r.Expiry }),
	stringCol("option_type", func(r model.SmileRow) string { return r.OptionType.String() }),
	floatCol("strike", func(r model.SmileRow) *float64 { return r.Strike }),
	floatCol("bid", func(r model.SmileRow) *float64 { return r.Bid }),
	floatCol("ask", func(r model.SmileRow) *float64 { return r.Ask }),
	floatCol("mid", func(r model.SmileRow) *float64 { return r.Mid }),
	floatCol("iv", func(r model.SmileRow) *float64 { return r.IV }),
	floatCol("delta", func(r model.SmileRow) *float64 { return r.Delta }),
	floatCol("gamma", func(r model.SmileRow) *float64 { return r.Gamma }),
	floatCol("vega", func(r model.SmileRow) *float64 { return r.Vega }),
	floatCol("theta", func(r model.SmileRow) *float64 { return r.Theta }),
	floatCol("rho", func(r model.SmileRow) *float64 { return r.Rho }),
	floatCol("S", func(r model.SmileRow) *float64 { return r.S }),
	floatCol("F", func(r model.SmileRow) *float64 { return r.F }),
	floatCol("spread", func(r model.SmileRow) *float64 { return r.Spread }),
	floatCol("moneyness", func(r model.SmileRow) *float64 { return r.Moneyness }),
	intCol("count", func(r model.SmileRow) int { return r.Count }),
}

// EncodeSnapshots implements Encoder.
func (e *ParquetEncoder) EncodeSnapshots(w io.Writer, rows []model.RawSnapshotRow) error {
	return encode(e, w, snapshotColumns, rows)
}

// EncodeSmiles implements Encoder.
func (e *ParquetEncoder) EncodeSmiles(w io.Writer, rows []model.SmileRow) error {
	return encode(e, w, smileColumns, rows)
}

func schemaOf[T any](cols []column[T]) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = c.field
	}
	return arrow.NewSchema(fields, nil)
}

func encode[T any](e *ParquetEncoder, w io.Writer, cols []column[T], rows []T) error {
	schema := schemaOf(cols)

	b := array.NewRecordBuilder(e.mem, schema)
	defer b.Release()

	for _, row := range rows {
		for i, c := range cols {
			c.append(b.Field(i), row)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := pqarrow.NewFileWriter(schema, w, e.props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("parquet write: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}
	return nil
}
