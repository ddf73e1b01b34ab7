package qc

import "github.com/rickgao/deribit-smiles/internal/model"

// Check names reported by Assess.
const (
	CheckIV     = "qc_iv"
	CheckDelta  = "qc_delta"
	CheckPrices = "qc_prices"
	CheckStrike = "qc_strike"
	CheckExpiry = "qc_expiry"
	CheckSpread = "qc_spread"
	CheckPass   = "qc_pass"
)

// CheckResult counts the rows failing one check.
type CheckResult struct {
	Name   string
	Failed int
	Rate   float64
}

// Report summarizes QC over a set of canonical rows.
type Report struct {
	Rows   int
	Checks []CheckResult
}

// Failed returns the failure count of a check, 0 if it was not evaluated.
func (r Report) Failed(name string) int {
	for _, c := range r.Checks {
		if c.Name == name {
			return c.Failed
		}
	}
	return 0
}

// Assess evaluates per-row plausibility checks. qc_spread is evaluated only
// when SpreadRelMax is positive. An empty input yields an empty report.
func Assess(rows []model.CanonicalRow, lim Limits) Report {
	rep := Report{Rows: len(rows)}
	if len(rows) == 0 {
		return rep
	}

	names := []string{CheckIV, CheckDelta, CheckPrices, CheckStrike, CheckExpiry}
	if lim.SpreadRelMax > 0 {
		names = append(names, CheckSpread)
	}
	names = append(names, CheckPass)

	failed := make(map[string]int, len(names))
	for _, row := range rows {
		res := evaluate(row, lim)
		pass := true
		for name, ok := range res {
			if !ok {
				failed[name]++
				pass = false
			}
		}
		if !pass {
			failed[CheckPass]++
		}
	}

	for _, name := range names {
		rep.Checks = append(rep.Checks, CheckResult{
			Name:   name,
			Failed: failed[name],
			Rate:   float64(failed[name]) / float64(len(rows)),
		})
	}
	return rep
}

func evaluate(row model.CanonicalRow, lim Limits) map[string]bool {
	res := map[string]bool{
		CheckIV:     within(row.IV, lim.IVMin, lim.IVMax),
		CheckDelta:  within(row.Delta, lim.DeltaMin, lim.DeltaMax),
		CheckPrices: orDefault(row.Ask, -1) >= orDefault(row.Bid, -1) && orDefault(row.Bid, 0) >= 0,
		CheckStrike: orDefault(row.Strike, -1) > 0,
		CheckExpiry: row.Expiry != nil && !row.Expiry.Before(row.Timestamp),
	}
	if lim.SpreadRelMax > 0 {
		res[CheckSpread] = row.Spread != nil && *row.Spread <= lim.SpreadRelMax
	}
	return res
}

func within(v *float64, lo, hi float64) bool {
	return v != nil && *v >= lo && *v <= hi
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
