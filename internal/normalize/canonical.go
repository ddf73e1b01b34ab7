package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/deribit-smiles/internal/model"
)

// CanonicalColumns is the ordered canonical column list.
var CanonicalColumns = []string{
	"timestamp", "underlying", "instrument_name", "expiry", "strike", "option_type",
	"bid", "ask", "mid", "iv", "delta", "gamma", "vega", "theta", "rho",
	"F", "S", "spread", "moneyness", "iv_flag_outlier",
}

// CanonicalSources maps each canonical column to the working column it is projected from.
var CanonicalSources = map[string]string{
	"timestamp":       "slot_time_utc",
	"underlying":      "underlying",
	"instrument_name": "instrument_name",
	"expiry":          "expiry_utc",
	"strike":          "strike",
	"option_type":     "option_type",
	"bid":             "bid",
	"ask":             "ask",
	"mid":             "mid",
	"iv":              "iv",
	"delta":           "delta",
	"gamma":           "gamma",
	"vega":            "vega",
	"theta":           "theta",
	"rho":             "rho",
	"F":               "F",
	"S":               "S",
	"spread":          "spread_rel",
	"moneyness":       "moneyness",
	"iv_flag_outlier": "iv_flag_outlier",
}

// SchemaError reports canonical columns that cannot be derived from the working set.
type SchemaError struct {
	Missing []string // Working column names
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("canonicalize: missing columns: %s", strings.Join(e.Missing, ", "))
}

// Canonicalize projects the frame onto CanonicalColumns.
func Canonicalize(f *Frame) ([]model.CanonicalRow, error) {
	var absent []string
	for _, col := range CanonicalColumns {
		if src := CanonicalSources[col]; !f.Has(src) {
			absent = append(absent, src)
		}
	}
	if len(absent) > 0 {
		return nil, &SchemaError{Missing: absent}
	}

	rows := make([]model.CanonicalRow, 0, f.Len())
	for _, r := range f.Rows {
		ts := toTime(r["slot_time_utc"])
		if ts == nil {
			return nil, &TimestampError{Column: "slot_time_utc", Value: r["slot_time_utc"]}
		}
		name, _ := r["instrument_name"].(string)
		underlying, _ := r["underlying"].(string)
		flag, _ := r["iv_flag_outlier"].(bool)

		rows = append(rows, model.CanonicalRow{
			Timestamp:      *ts,
			Underlying:     underlying,
			InstrumentName: name,
			Expiry:         toTime(r["expiry_utc"]),
			Strike:         ToFloat(r["strike"]),
			OptionType:     NormalizeOptionType(r["option_type"]),
			Bid:            ToFloat(r["bid"]),
			Ask:            ToFloat(r["ask"]),
			Mid:            ToFloat(r["mid"]),
			IV:             ToFloat(r["iv"]),
			Delta:          ToFloat(r["delta"]),
			Gamma:          ToFloat(r["gamma"]),
			Vega:           ToFloat(r["vega"]),
			Theta:          ToFloat(r["theta"]),
			Rho:            ToFloat(r["rho"]),
			F:              ToFloat(r["F"]),
			S:              ToFloat(r["S"]),
			Spread:         ToFloat(r["spread_rel"]),
			Moneyness:      ToFloat(r["moneyness"]),
			IVFlagOutlier:  flag,
		})
	}
	return rows, nil
}

// toTime accepts time values and epoch timestamps.
func toTime(v any) *time.Time {
	if t := timeOrNil(v); t != nil {
		return t
	}
	if v == nil {
		return nil
	}
	ms, err := ToUTCMillis(v)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}
