package qc

import (
	"fmt"
	"math"

	"github.com/rickgao/deribit-smiles/internal/model"
	"github.com/rickgao/deribit-smiles/internal/normalize"
)

// Reference selects the price moneyness is measured against.
type Reference string

const (
	ReferenceUnderlying Reference = "underlying_price" // column F
	ReferenceIndex      Reference = "index_price"      // column S
)

// Column returns the working column holding the reference price.
func (r Reference) Column() string {
	if r == ReferenceIndex {
		return "S"
	}
	return "F"
}

// ParseReference validates a configured reference; "" selects ReferenceUnderlying.
func ParseReference(s string) (Reference, error) {
	switch Reference(s) {
	case "", ReferenceUnderlying:
		return ReferenceUnderlying, nil
	case ReferenceIndex:
		return ReferenceIndex, nil
	}
	return "", fmt.Errorf("unknown moneyness reference %q", s)
}

// ComputeMidAndSpread fills missing mids from bid and ask and sets
// spread_rel = (ask-bid)/mid. The spread is nil when mid is nil or zero.
func ComputeMidAndSpread(in *normalize.Frame) *normalize.Frame {
	out := in.Clone()
	if !out.HasAll("bid", "ask") {
		return out
	}
	out.AddColumn("mid")
	out.AddColumn("spread_rel")

	for _, r := range out.Rows {
		bid, okBid := r.Float("bid")
		ask, okAsk := r.Float("ask")
		mid, okMid := r.Float("mid")
		if !okMid && okBid && okAsk {
			mid, okMid = (bid+ask)/2, true
			r["mid"] = mid
		}
		if !okMid || mid == 0 || !okBid || !okAsk {
			r["spread_rel"] = nil
			continue
		}
		r["spread_rel"] = (ask - bid) / mid
	}
	return out
}

// EnforceBidAskRules keeps rows with bid >= 0, ask > 0 and ask >= bid.
// Rows missing either price fail the test.
func EnforceBidAskRules(in *normalize.Frame) *normalize.Frame {
	if !in.HasAll("bid", "ask") {
		return in.Clone()
	}
	return in.Filter(func(r normalize.Record) bool {
		bid, okBid := r.Float("bid")
		ask, okAsk := r.Float("ask")
		return okBid && okAsk && bid >= 0 && ask > 0 && ask >= bid
	}).Clone()
}

// AddMoneyness sets moneyness = log(strike / reference price). It is nil when
// either operand is missing or non-positive.
func AddMoneyness(in *normalize.Frame, ref Reference) *normalize.Frame {
	out := in.Clone()
	col := ref.Column()
	if !out.HasAll("strike", col) {
		return out
	}
	out.AddColumn("moneyness")

	for _, r := range out.Rows {
		k, okK := r.Float("strike")
		p, okP := r.Float(col)
		if !okK || !okP || k <= 0 || p <= 0 {
			r["moneyness"] = nil
			continue
		}
		r["moneyness"] = math.Log(k / p)
	}
	return out
}

// FlagIVOutliers sets iv_flag_outlier = !(IVMin <= iv <= IVMax). A nil iv is flagged.
func FlagIVOutliers(in *normalize.Frame, lim Limits) *normalize.Frame {
	out := in.Clone()
	if !out.Has("iv") {
		return out
	}
	out.AddColumn("iv_flag_outlier")

	for _, r := range out.Rows {
		iv, ok := r.Float("iv")
		r["iv_flag_outlier"] = !(ok && iv >= lim.IVMin && iv <= lim.IVMax)
	}
	return out
}

// Clean standardizes a frame, applies the QC chain and projects the result
// onto the canonical schema.
func Clean(in *normalize.Frame, lim Limits, ref Reference) ([]model.CanonicalRow, error) {
	f, err := normalize.Standardize(in)
	if err != nil {
		return nil, err
	}
	f = EnforceBidAskRules(f)
	f = ComputeMidAndSpread(f)
	f = AddMoneyness(f, ref)
	f = FlagIVOutliers(f, lim)
	return normalize.Canonicalize(f)
}
