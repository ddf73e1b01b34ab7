// Package smile aggregates canonical rows into per-strike smile points.
package smile

import (
	"cmp"
	"time"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/rickgao/deribit-smiles/internal/model"
)

type groupKey struct {
	underlying string
	expiry     int64 // Unix ms
	hasExpiry  bool
	optionType model.OptionType
	strike     float64
	hasStrike  bool
}

func compareKeys(a, b any) int {
	ka, kb := a.(groupKey), b.(groupKey)
	if c := cmp.Compare(ka.underlying, kb.underlying); c != 0 {
		return c
	}
	if c := compareOptional(ka.hasExpiry, kb.hasExpiry, ka.expiry, kb.expiry); c != 0 {
		return c
	}
	if c := cmp.Compare(ka.optionType, kb.optionType); c != 0 {
		return c
	}
	return compareOptional(ka.hasStrike, kb.hasStrike, ka.strike, kb.strike)
}

// compareOptional orders missing values before present ones.
func compareOptional[T cmp.Ordered](hasA, hasB bool, a, b T) int {
	switch {
	case !hasA && !hasB:
		return 0
	case !hasA:
		return -1
	case !hasB:
		return 1
	}
	return cmp.Compare(a, b)
}

// mean accumulates non-nil values.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v != nil {
		m.sum += *v
		m.n++
	}
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

type group struct {
	first model.CanonicalRow
	count int

	bid, ask, mid, iv              mean
	delta, gamma, vega, theta, rho mean
	s, f, spread, moneyness        mean
}

func (g *group) add(r model.CanonicalRow) {
	g.count++
	g.bid.add(r.Bid)
	g.ask.add(r.Ask)
	g.mid.add(r.Mid)
	g.iv.add(r.IV)
	g.delta.add(r.Delta)
	g.gamma.add(r.Gamma)
	g.vega.add(r.Vega)
	g.theta.add(r.Theta)
	g.rho.add(r.Rho)
	g.s.add(r.S)
	g.f.add(r.F)
	g.spread.add(r.Spread)
	g.moneyness.add(r.Moneyness)
}

// Build groups rows by (underlying, expiry, option type, strike) and averages
// every numeric field over its non-nil values. A field with no values stays nil.
// All output rows carry the slot time of the first input row. Output is
// ordered by group key.
func Build(rows []model.CanonicalRow) []model.SmileRow {
	if len(rows) == 0 {
		return []model.SmileRow{}
	}
	slot := rows[0].Timestamp

	groups := treemap.NewWith(compareKeys)
	for _, r := range rows {
		k := keyOf(r)
		v, ok := groups.Get(k)
		if !ok {
			v = &group{first: r}
			groups.Put(k, v)
		}
		v.(*group).add(r)
	}

	out := make([]model.SmileRow, 0, groups.Size())
	it := groups.Iterator()
	for it.Next() {
		g := it.Value().(*group)
		out = append(out, model.SmileRow{
			SlotTime:   slot,
			Underlying: g.first.Underlying,
			Expiry:     copyTime(g.first.Expiry),
			OptionType: g.first.OptionType,
			Strike:     copyFloat(g.first.Strike),
			Bid:        g.bid.value(),
			Ask:        g.ask.value(),
			Mid:        g.mid.value(),
			IV:         g.iv.value(),
			Delta:      g.delta.value(),
			Gamma:      g.gamma.value(),
			Vega:       g.vega.value(),
			Theta:      g.theta.value(),
			Rho:        g.rho.value(),
			S:          g.s.value(),
			F:          g.f.value(),
			Spread:     g.spread.value(),
			Moneyness:  g.moneyness.value(),
			Count:      g.count,
		})
	}
	return out
}

func keyOf(r model.CanonicalRow) groupKey {
	k := groupKey{underlying: r.Underlying, optionType: r.OptionType}
	if r.Expiry != nil {
		k.expiry, k.hasExpiry = r.Expiry.UnixMilli(), true
	}
	if r.Strike != nil {
		k.strike, k.hasStrike = *r.Strike, true
	}
	return k
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
