package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/deribit-smiles/internal/model"
)

var slot = time.Date(2025, 10, 20, 12, 30, 0, 0, time.UTC)

func TestCoalesceAliases(t *testing.T) {
	f := NewFrame([]Record{{
		"symbol":         "BTC-27OCT25-65000-C",
		"observed_time":  int64(1_760_963_400),
		"best_bid_price": "0.05",
		"best_ask_price": 0.07,
		"mark_iv":        55.0,
		"index_price":    64000.0,
		"call_put":       "C",
	}})

	out, err := Coalesce(f)
	require.NoError(t, err)

	r := out.Rows[0]
	assert.Equal(t, "BTC-27OCT25-65000-C", r["instrument_name"])
	assert.Equal(t, int64(1_760_963_400_000), r["timestamp"])
	assert.Equal(t, 0.05, r["bid"])
	assert.Equal(t, 0.07, r["ask"])
	assert.InDelta(t, 0.55, r["iv"], 1e-12)
	assert.Equal(t, 64000.0, r["S"])
	assert.Equal(t, model.OptionCall, r["option_type"])

	// Input records are not modified.
	assert.NotContains(t, f.Rows[0], "instrument_name")
}

func TestCoalesceKeepsCanonicalIV(t *testing.T) {
	f := NewFrame([]Record{{"iv": 0.6, "mark_iv": 60.0}})

	out, err := Coalesce(f)
	require.NoError(t, err)
	assert.Equal(t, 0.6, out.Rows[0]["iv"])
}

func TestCoalesceFractionalAliasNotScaled(t *testing.T) {
	f := NewFrame([]Record{{"implied_volatility": "0.45"}})

	out, err := Coalesce(f)
	require.NoError(t, err)
	assert.Equal(t, 0.45, out.Rows[0]["iv"])
}

func TestCoalesceNumericFailureIsNil(t *testing.T) {
	f := NewFrame([]Record{{"bid": "n/a", "ask": 1.0}})

	out, err := Coalesce(f)
	require.NoError(t, err)
	assert.Nil(t, out.Rows[0]["bid"])
	assert.Equal(t, 1.0, out.Rows[0]["ask"])
	assert.True(t, out.Has("bid"))
}

func TestCoalesceBadTimestamp(t *testing.T) {
	f := NewFrame([]Record{{"timestamp_utc": "yesterday"}})

	_, err := Coalesce(f)
	require.Error(t, err)

	var te *TimestampError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "timestamp", te.Column)
}

func TestParseAndFillInstrumentFields(t *testing.T) {
	f := NewFrame([]Record{
		{"instrument_name": "BTC-27OCT25-65000-C", "strike": 1.0},
		{"instrument_name": "BTC-27OCT25"},
		{"instrument_name": "garbage"},
	})

	out := ParseAndFillInstrumentFields(f)
	require.Equal(t, 3, out.Len())

	opt := out.Rows[0]
	assert.Equal(t, model.KindOption, opt["kind"])
	assert.Equal(t, "BTC", opt["underlying"])
	assert.Equal(t, model.OptionCall, opt["option_type"])
	assert.Equal(t, 1.0, opt["strike"], "existing value kept")
	assert.Equal(t, time.Date(2025, 10, 27, 8, 0, 0, 0, time.UTC), opt["maturity"])

	fut := out.Rows[1]
	assert.Equal(t, model.KindFuture, fut["kind"])
	assert.Equal(t, model.OptionNone, fut["option_type"])
	assert.Nil(t, fut["strike"])

	unk := out.Rows[2]
	assert.Equal(t, model.KindUnknown, unk["kind"])
	assert.Nil(t, unk["underlying"])
	assert.Nil(t, unk["maturity"])
}

func TestParseAndFillWithoutName(t *testing.T) {
	f := NewFrame([]Record{{"bid": 1.0}})

	out := ParseAndFillInstrumentFields(f)
	assert.False(t, out.Has("kind"))
}

func TestDedupeLastWins(t *testing.T) {
	f := NewFrame([]Record{
		{"instrument_name": "BTC-27OCT25-65000-C", "slot_time_utc": slot, "bid": 1.0},
		{"instrument_name": "BTC-27OCT25-60000-C", "slot_time_utc": slot, "bid": 5.0},
		{"instrument_name": "BTC-27OCT25-65000-C", "slot_time_utc": slot, "bid": 2.0},
	})

	out := Dedupe(f)
	require.Equal(t, 2, out.Len())

	assert.Equal(t, "BTC-27OCT25-60000-C", out.Rows[0]["instrument_name"])
	assert.Equal(t, "BTC-27OCT25-65000-C", out.Rows[1]["instrument_name"])
	assert.Equal(t, 2.0, out.Rows[1]["bid"])
}

func TestDedupeDistinctSlots(t *testing.T) {
	f := NewFrame([]Record{
		{"instrument_name": "X", "slot_time_utc": slot.Add(30 * time.Minute)},
		{"instrument_name": "X", "slot_time_utc": slot},
	})

	out := Dedupe(f)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, slot, out.Rows[0]["slot_time_utc"])
}

func TestDedupeWithoutKeys(t *testing.T) {
	f := NewFrame([]Record{{"bid": 1.0}, {"bid": 1.0}})

	assert.Equal(t, 2, Dedupe(f).Len())
}

func rawRow(name string, bid, ask float64) model.RawSnapshotRow {
	expiry := time.Date(2025, 10, 27, 8, 0, 0, 0, time.UTC)
	return model.RawSnapshotRow{
		SlotTime:        slot,
		ObservedTime:    slot.Add(2 * time.Second),
		Underlying:      "BTC",
		InstrumentName:  name,
		Expiry:          &expiry,
		Strike:          model.Float(65000),
		OptionType:      model.OptionCall,
		Bid:             model.Float(bid),
		Ask:             model.Float(ask),
		IV:              model.Float(0.55),
		Delta:           model.Float(0.4),
		IndexPrice:      model.Float(64000),
		UnderlyingPrice: model.Float(64100),
	}
}

func TestStandardizeRawRows(t *testing.T) {
	f := FromRawRows([]model.RawSnapshotRow{
		rawRow("BTC-27OCT25-65000-C", 0.05, 0.07),
		rawRow("BTC-27OCT25-65000-C", 0.06, 0.08),
	})

	out, err := Standardize(f)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())

	r := out.Rows[0]
	assert.Equal(t, 0.06, r["bid"])
	assert.Equal(t, 0.55, r["iv"], "canonical iv is not rescaled")
	assert.Equal(t, 64100.0, r["F"])
	assert.Equal(t, 64000.0, r["S"])
	assert.Equal(t, slot.Add(2*time.Second).UnixMilli(), r["timestamp"])
	assert.Equal(t, model.KindOption, r["kind"])
}

func TestCanonicalizeMissingColumns(t *testing.T) {
	f := FromRawRows([]model.RawSnapshotRow{rawRow("BTC-27OCT25-65000-C", 0.05, 0.07)})

	_, err := Canonicalize(f)
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Missing, "F")
	assert.Contains(t, se.Missing, "spread_rel")
	assert.Contains(t, se.Missing, "iv_flag_outlier")
}

func TestCanonicalize(t *testing.T) {
	f, err := Standardize(FromRawRows([]model.RawSnapshotRow{rawRow("BTC-27OCT25-65000-C", 0.05, 0.07)}))
	require.NoError(t, err)
	for _, col := range []string{"spread_rel", "moneyness", "iv_flag_outlier"} {
		f.AddColumn(col)
	}
	f.Rows[0]["spread_rel"] = 0.2
	f.Rows[0]["iv_flag_outlier"] = false

	rows, err := Canonicalize(f)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, slot, r.Timestamp)
	assert.Equal(t, "BTC", r.Underlying)
	require.NotNil(t, r.Expiry)
	assert.Equal(t, time.Date(2025, 10, 27, 8, 0, 0, 0, time.UTC), *r.Expiry)
	assert.Equal(t, model.OptionCall, r.OptionType)
	assert.Equal(t, 0.05, *r.Bid)
	assert.Nil(t, r.Mid)
	assert.Nil(t, r.Moneyness)
	assert.Equal(t, 0.2, *r.Spread)
	assert.Equal(t, 64100.0, *r.F)
	assert.False(t, r.IVFlagOutlier)
}
