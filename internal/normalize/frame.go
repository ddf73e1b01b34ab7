package normalize

import (
	"slices"
	"time"

	"github.com/rickgao/deribit-smiles/internal/model"
)

// Record is one loosely typed row keyed by column name.
type Record map[string]any

// Frame is an ordered set of columns and the rows holding them.
type Frame struct {
	Columns []string
	Rows    []Record
}

// NewFrame builds a frame from records. Columns are registered row by row, each
// row's new keys in lexical order.
func NewFrame(rows []Record) *Frame {
	f := &Frame{Rows: rows}
	for _, r := range rows {
		for _, c := range sortedKeys(r) {
			f.AddColumn(c)
		}
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Has reports whether the column exists.
func (f *Frame) Has(col string) bool {
	return slices.Contains(f.Columns, col)
}

// HasAll reports whether every column exists.
func (f *Frame) HasAll(cols ...string) bool {
	for _, c := range cols {
		if !f.Has(c) {
			return false
		}
	}
	return true
}

// AddColumn registers a column if it is not present yet.
func (f *Frame) AddColumn(col string) {
	if !f.Has(col) {
		f.Columns = append(f.Columns, col)
	}
}

// Clone returns a copy with independent rows.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Columns: slices.Clone(f.Columns),
		Rows:    make([]Record, len(f.Rows)),
	}
	for i, r := range f.Rows {
		nr := make(Record, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// Filter returns a frame holding only the rows for which keep returns true.
func (f *Frame) Filter(keep func(Record) bool) *Frame {
	out := &Frame{Columns: slices.Clone(f.Columns)}
	for _, r := range f.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Float returns the value of col as a float64. ok is false for nil or non-numeric values.
func (r Record) Float(col string) (float64, bool) {
	p := ToFloat(r[col])
	if p == nil {
		return 0, false
	}
	return *p, true
}

// FromRawRows converts raw snapshot rows to records using the collector's column names.
func FromRawRows(rows []model.RawSnapshotRow) *Frame {
	f := &Frame{Columns: slices.Clone(RawColumns), Rows: make([]Record, 0, len(rows))}
	for _, r := range rows {
		var expiry any
		if r.Expiry != nil {
			expiry = *r.Expiry
		}
		f.Rows = append(f.Rows, Record{
			"slot_time_utc":    r.SlotTime,
			"timestamp_utc":    r.ObservedTime,
			"underlying":       r.Underlying,
			"instrument_name":  r.InstrumentName,
			"expiry_utc":       expiry,
			"strike":           floatOrNil(r.Strike),
			"option_type":      r.OptionType,
			"bid":              floatOrNil(r.Bid),
			"ask":              floatOrNil(r.Ask),
			"mid":              floatOrNil(r.Mid),
			"iv":               floatOrNil(r.IV),
			"delta":            floatOrNil(r.Delta),
			"gamma":            floatOrNil(r.Gamma),
			"vega":             floatOrNil(r.Vega),
			"theta":            floatOrNil(r.Theta),
			"rho":              floatOrNil(r.Rho),
			"index_price":      floatOrNil(r.IndexPrice),
			"underlying_price": floatOrNil(r.UnderlyingPrice),
		})
	}
	return f
}

// RawColumns are the column names of a raw snapshot record, in order.
var RawColumns = []string{
	"slot_time_utc",
	"timestamp_utc",
	"underlying",
	"instrument_name",
	"expiry_utc",
	"strike",
	"option_type",
	"bid",
	"ask",
	"mid",
	"iv",
	"delta",
	"gamma",
	"vega",
	"theta",
	"rho",
	"index_price",
	"underlying_price",
}

func floatOrNil(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeOrNil(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	}
	return nil
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
