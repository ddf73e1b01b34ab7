package qc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/deribit-smiles/internal/model"
	"github.com/rickgao/deribit-smiles/internal/normalize"
)

var slot = time.Date(2025, 10, 20, 12, 30, 0, 0, time.UTC)

func TestFlagIVOutliers(t *testing.T) {
	f := normalize.NewFrame([]normalize.Record{
		{"iv": 0.005},
		{"iv": 1.0},
		{"iv": nil},
		{"iv": 0.01},
		{"iv": 5.0},
	})

	out := FlagIVOutliers(f, Limits{IVMin: 0.01, IVMax: 5.0})

	want := []bool{true, false, true, false, false}
	for i, w := range want {
		assert.Equal(t, w, out.Rows[i]["iv_flag_outlier"], "row %d", i)
	}
}

func TestEnforceBidAskRules(t *testing.T) {
	f := normalize.NewFrame([]normalize.Record{
		{"instrument_name": "ok", "bid": 1.0, "ask": 2.0},
		{"instrument_name": "crossed", "bid": 3.0, "ask": 2.0},
		{"instrument_name": "negative", "bid": -1.0, "ask": 2.0},
		{"instrument_name": "zero ask", "bid": 0.0, "ask": 0.0},
		{"instrument_name": "no bid", "bid": nil, "ask": 2.0},
		{"instrument_name": "locked", "bid": 2.0, "ask": 2.0},
	})

	out := EnforceBidAskRules(f)

	var names []string
	for _, r := range out.Rows {
		names = append(names, r["instrument_name"].(string))
	}
	assert.Equal(t, []string{"ok", "locked"}, names)
}

func TestComputeMidAndSpread(t *testing.T) {
	f := normalize.NewFrame([]normalize.Record{
		{"bid": 1.0, "ask": 3.0, "mid": nil},
		{"bid": 0.0, "ask": 0.0, "mid": nil},
		{"bid": nil, "ask": 3.0, "mid": nil},
		{"bid": 1.0, "ask": 3.0, "mid": 4.0},
	})

	out := ComputeMidAndSpread(f)

	assert.Equal(t, 2.0, out.Rows[0]["mid"])
	assert.Equal(t, 1.0, out.Rows[0]["spread_rel"])
	assert.Nil(t, out.Rows[1]["spread_rel"], "zero mid")
	assert.Nil(t, out.Rows[2]["mid"])
	assert.Nil(t, out.Rows[2]["spread_rel"])
	assert.Equal(t, 0.5, out.Rows[3]["spread_rel"], "existing mid kept")
}

func TestAddMoneyness(t *testing.T) {
	f := normalize.NewFrame([]normalize.Record{
		{"strike": 100.0, "F": 100.0, "S": 50.0},
		{"strike": 100.0, "F": 0.0, "S": 50.0},
		{"strike": nil, "F": 100.0, "S": 50.0},
	})

	byF := AddMoneyness(f, ReferenceUnderlying)
	assert.Equal(t, 0.0, byF.Rows[0]["moneyness"])
	assert.Nil(t, byF.Rows[1]["moneyness"])
	assert.Nil(t, byF.Rows[2]["moneyness"])

	byS := AddMoneyness(f, ReferenceIndex)
	assert.InDelta(t, math.Log(2), byS.Rows[0]["moneyness"], 1e-12)
	assert.InDelta(t, math.Log(2), byS.Rows[1]["moneyness"], 1e-12)
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("")
	require.NoError(t, err)
	assert.Equal(t, ReferenceUnderlying, ref)

	ref, err = ParseReference("index_price")
	require.NoError(t, err)
	assert.Equal(t, "S", ref.Column())

	_, err = ParseReference("mark_price")
	assert.Error(t, err)
}

func raw(name string, bid, ask *float64, iv float64) model.RawSnapshotRow {
	expiry := time.Date(2025, 10, 27, 8, 0, 0, 0, time.UTC)
	return model.RawSnapshotRow{
		SlotTime:        slot,
		ObservedTime:    slot.Add(time.Second),
		Underlying:      "BTC",
		InstrumentName:  name,
		Expiry:          &expiry,
		Strike:          model.Float(64100),
		OptionType:      model.OptionCall,
		Bid:             bid,
		Ask:             ask,
		IV:              model.Float(iv),
		Delta:           model.Float(0.5),
		IndexPrice:      model.Float(64000),
		UnderlyingPrice: model.Float(64100),
	}
}

func TestClean(t *testing.T) {
	f := normalize.FromRawRows([]model.RawSnapshotRow{
		raw("BTC-27OCT25-64100-C", model.Float(0.5), model.Float(0.75), 0.55),
		raw("BTC-27OCT25-70000-C", model.Float(0.8), model.Float(0.6), 0.55),
		raw("BTC-27OCT25-80000-C", nil, model.Float(0.1), 0.55),
		raw("BTC-27OCT25-60000-C", model.Float(0.5), model.Float(0.75), 0.001),
	})

	rows, err := Clean(f, DefaultLimits(), ReferenceUnderlying)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Sorted by instrument name.
	assert.Equal(t, "BTC-27OCT25-60000-C", rows[0].InstrumentName)
	assert.True(t, rows[0].IVFlagOutlier)

	r := rows[1]
	assert.Equal(t, "BTC-27OCT25-64100-C", r.InstrumentName)
	assert.Equal(t, slot, r.Timestamp)
	assert.Equal(t, 0.625, *r.Mid)
	assert.Equal(t, 0.4, *r.Spread)
	assert.Equal(t, 0.0, *r.Moneyness)
	assert.False(t, r.IVFlagOutlier)
}

func TestCleanSchemaError(t *testing.T) {
	f := normalize.NewFrame([]normalize.Record{{"instrument_name": "BTC-27OCT25", "bid": 1.0, "ask": 2.0}})

	_, err := Clean(f, DefaultLimits(), ReferenceUnderlying)
	var se *normalize.SchemaError
	assert.ErrorAs(t, err, &se)
}
