package normalize

// alias is one candidate source column for a canonical field.
type alias struct {
	column  string
	percent bool // IV quoted in percent, divided by 100 after coercion
}

// field is a canonical field and its ordered alias list.
type field struct {
	target  string
	aliases []alias
}

func plain(cols ...string) []alias {
	out := make([]alias, len(cols))
	for i, c := range cols {
		out[i] = alias{column: c}
	}
	return out
}

// fields lists canonical fields in coalescing order. The first alias present wins.
var fields = []field{
	{"slot_time_utc", plain("slot_time_utc", "slot_time")},
	{"timestamp", plain("timestamp_utc", "observed_time")},
	{"instrument_name", plain("instrument_name", "symbol", "inst")},
	{"bid", plain("best_bid_price", "bid_price", "bid")},
	{"ask", plain("best_ask_price", "ask_price", "ask")},
	{"mark_price", plain("mark_price", "mark", "last_price")},
	{"iv", []alias{
		{column: "mark_iv", percent: true},
		{column: "iv_pct", percent: true},
		{column: "implied_volatility"},
	}},
	{"delta", plain("delta")},
	{"gamma", plain("gamma")},
	{"vega", plain("vega")},
	{"theta", plain("theta")},
	{"rho", plain("rho")},
	{"F", plain("underlying_price")},
	{"S", plain("index_price")},
	{"volume", plain("volume", "volume_24h")},
	{"open_interest", plain("open_interest", "oi")},
	{"maturity", plain("maturity", "expiry_utc", "expiration", "expiration_date", "expiration_timestamp")},
	{"strike", plain("strike", "k", "strike_price")},
	{"option_type", plain("option_type", "is_call", "call_put", "right")},
	{"kind", plain("kind", "instrument_type", "type")},
}

// TimestampColumns are converted to UTC epoch milliseconds during Coalesce.
var TimestampColumns = []string{"timestamp"}

// NumericColumns are coerced to float64 (nil on parse failure) during Coalesce.
var NumericColumns = []string{
	"bid", "ask", "mid", "mark_price", "iv",
	"delta", "gamma", "vega", "theta", "rho",
	"underlying_price", "index_price", "F", "S",
	"strike", "volume", "open_interest",
}

// Coalesce maps aliased input columns onto canonical names and coerces types.
//
// Canonical columns already present are left untouched. Timestamp columns must
// convert for every row; the first failure is returned as a *TimestampError.
func Coalesce(in *Frame) (*Frame, error) {
	out := in.Clone()

	percentIV := false
	for _, fd := range fields {
		if out.Has(fd.target) {
			continue
		}
		for _, a := range fd.aliases {
			if !out.Has(a.column) {
				continue
			}
			for _, r := range out.Rows {
				r[fd.target] = r[a.column]
			}
			out.AddColumn(fd.target)
			if fd.target == "iv" {
				percentIV = a.percent
			}
			break
		}
	}

	for _, col := range TimestampColumns {
		if !out.Has(col) {
			continue
		}
		for _, r := range out.Rows {
			ms, err := ToUTCMillis(r[col])
			if err != nil {
				if te, ok := err.(*TimestampError); ok {
					te.Column = col
				}
				return nil, err
			}
			r[col] = ms
		}
	}

	if out.Has("option_type") {
		for _, r := range out.Rows {
			r["option_type"] = NormalizeOptionType(r["option_type"])
		}
	}

	for _, col := range NumericColumns {
		if !out.Has(col) {
			continue
		}
		for _, r := range out.Rows {
			p := ToFloat(r[col])
			if p == nil {
				r[col] = nil
				continue
			}
			v := *p
			if col == "iv" && percentIV {
				v /= 100
			}
			r[col] = v
		}
	}

	return out, nil
}
