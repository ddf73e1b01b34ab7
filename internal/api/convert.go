package api

import (
	"time"

	"github.com/rickgao/deribit-smiles/internal/instrument"
	"github.com/rickgao/deribit-smiles/internal/model"
)

// PercentToFraction converts a percent IV (55.2) to fractional form (0.552).
func PercentToFraction(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v / 100
	return &f
}

// BuildRow converts a ticker response into a raw snapshot row.
//
// Strike, expiry and option type come from the instrument name. Greeks are
// extracted individually and are all nil when the ticker carries no greeks.
func BuildRow(slot, observed time.Time, underlying, name string, t *Ticker) model.RawSnapshotRow {
	code := instrument.Parse(name)

	row := model.RawSnapshotRow{
		SlotTime:        slot.UTC(),
		ObservedTime:    observed.UTC(),
		Underlying:      underlying,
		InstrumentName:  name,
		Expiry:          code.Settlement(),
		Strike:          code.Strike,
		OptionType:      code.OptionType,
		Bid:             t.BestBidPrice,
		Ask:             t.BestAskPrice,
		IV:              PercentToFraction(t.MarkIV),
		IndexPrice:      t.IndexPrice,
		UnderlyingPrice: t.UnderlyingPrice,
	}

	if t.BestBidPrice != nil && t.BestAskPrice != nil {
		mid := (*t.BestBidPrice + *t.BestAskPrice) / 2
		row.Mid = &mid
	}

	if g := t.Greeks; g != nil {
		row.Delta = g.Delta
		row.Gamma = g.Gamma
		row.Vega = g.Vega
		row.Theta = g.Theta
		row.Rho = g.Rho
	}

	return row
}
