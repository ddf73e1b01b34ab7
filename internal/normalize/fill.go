package normalize

import (
	"github.com/rickgao/deribit-smiles/internal/instrument"
	"github.com/rickgao/deribit-smiles/internal/model"
)

// FillColumns are derived from instrument_name when missing.
var FillColumns = []string{"kind", "maturity", "option_type", "strike", "underlying"}

// ParseAndFillInstrumentFields derives FillColumns from instrument_name.
//
// Only missing values are filled: nil, empty strings and OptionNone. A frame
// without instrument_name is returned unchanged (as a copy).
func ParseAndFillInstrumentFields(in *Frame) *Frame {
	out := in.Clone()
	if !out.Has("instrument_name") {
		return out
	}
	for _, col := range FillColumns {
		out.AddColumn(col)
	}

	for _, r := range out.Rows {
		name, _ := r["instrument_name"].(string)
		code := instrument.Parse(name)

		if missing(r["kind"]) {
			r["kind"] = code.Kind
		}
		if missing(r["maturity"]) {
			if s := code.Settlement(); s != nil {
				r["maturity"] = *s
			} else {
				r["maturity"] = nil
			}
		}
		if missing(r["option_type"]) {
			r["option_type"] = code.OptionType
		}
		if missing(r["strike"]) {
			if code.Strike != nil {
				r["strike"] = *code.Strike
			} else {
				r["strike"] = nil
			}
		}
		if missing(r["underlying"]) {
			if code.Underlying != "" {
				r["underlying"] = code.Underlying
			} else {
				r["underlying"] = nil
			}
		}
	}
	return out
}

func missing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case model.OptionType:
		return t == "" || t == model.OptionNone
	case model.Kind:
		return t == ""
	case *float64:
		return t == nil
	}
	return false
}
