package normalize

import (
	"cmp"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
)

type dedupeKey struct {
	name   string
	slotMS int64
	raw    string // fallback for slot values that do not convert
}

func compareDedupeKeys(a, b any) int {
	ka, kb := a.(dedupeKey), b.(dedupeKey)
	if c := cmp.Compare(ka.name, kb.name); c != 0 {
		return c
	}
	if c := cmp.Compare(ka.slotMS, kb.slotMS); c != 0 {
		return c
	}
	return cmp.Compare(ka.raw, kb.raw)
}

// Dedupe keeps one row per (instrument_name, slot_time_utc), sorted by that key.
//
// Only the key columns present in the frame take part. For duplicate keys the
// later occurrence in input order wins. A frame with neither column is returned
// unchanged (as a copy).
func Dedupe(in *Frame) *Frame {
	hasName, hasSlot := in.Has("instrument_name"), in.Has("slot_time_utc")
	if !hasName && !hasSlot {
		return in.Clone()
	}

	tree := treemap.NewWith(compareDedupeKeys)
	for _, r := range in.Rows {
		var k dedupeKey
		if hasName {
			k.name = fmt.Sprint(r["instrument_name"])
		}
		if hasSlot {
			if ms, err := ToUTCMillis(r["slot_time_utc"]); err == nil {
				k.slotMS = ms
			} else {
				k.raw = fmt.Sprint(r["slot_time_utc"])
			}
		}
		tree.Put(k, r)
	}

	out := &Frame{Columns: append([]string(nil), in.Columns...), Rows: make([]Record, 0, tree.Size())}
	it := tree.Iterator()
	for it.Next() {
		out.Rows = append(out.Rows, it.Value().(Record))
	}
	return out.Clone()
}

// Standardize runs Coalesce, ParseAndFillInstrumentFields and Dedupe.
func Standardize(in *Frame) (*Frame, error) {
	f, err := Coalesce(in)
	if err != nil {
		return nil, err
	}
	return Dedupe(ParseAndFillInstrumentFields(f)), nil
}
