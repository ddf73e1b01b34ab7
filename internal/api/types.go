package api

import (
	"fmt"
	"math"
)

// Instrument is one entry of /public/get_instruments.
type Instrument struct {
	InstrumentName      string   `json:"instrument_name"`
	Kind                string   `json:"kind"`
	BaseCurrency        string   `json:"base_currency"`
	QuoteCurrency       string   `json:"quote_currency"`
	SettlementCurrency  string   `json:"settlement_currency"`
	SettlementPeriod    string   `json:"settlement_period"`
	OptionType          string   `json:"option_type"`
	Strike              *float64 `json:"strike"`
	ExpirationTimestamp int64    `json:"expiration_timestamp"` // ms since epoch
	CreationTimestamp   int64    `json:"creation_timestamp"`   // ms since epoch
	IsActive            bool     `json:"is_active"`
	TickSize            float64  `json:"tick_size"`
	ContractSize        float64  `json:"contract_size"`
}

// Greeks is the greeks object of a ticker. Any field may be absent.
type Greeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Vega  *float64 `json:"vega"`
	Theta *float64 `json:"theta"`
	Rho   *float64 `json:"rho"`
}

// Ticker is the result of /public/ticker. Every numeric field is optional.
type Ticker struct {
	InstrumentName  string   `json:"instrument_name"`
	Timestamp       int64    `json:"timestamp"` // ms since epoch
	State           string   `json:"state"`
	BestBidPrice    *float64 `json:"best_bid_price"`
	BestAskPrice    *float64 `json:"best_ask_price"`
	BestBidAmount   *float64 `json:"best_bid_amount"`
	BestAskAmount   *float64 `json:"best_ask_amount"`
	MarkPrice       *float64 `json:"mark_price"`
	MarkIV          *float64 `json:"mark_iv"` // percent
	BidIV           *float64 `json:"bid_iv"`
	AskIV           *float64 `json:"ask_iv"`
	Greeks          *Greeks  `json:"greeks"`
	IndexPrice      *float64 `json:"index_price"`
	UnderlyingPrice *float64 `json:"underlying_price"`
	OpenInterest    *float64 `json:"open_interest"`
}

// Validate checks the response contract before a row is built from it.
func (t *Ticker) Validate(instrument string) error {
	if t == nil {
		return fmt.Errorf("ticker %s: empty result", instrument)
	}
	if t.InstrumentName != "" && t.InstrumentName != instrument {
		return fmt.Errorf("ticker %s: response is for %s", instrument, t.InstrumentName)
	}
	for name, v := range map[string]*float64{
		"best_bid_price":   t.BestBidPrice,
		"best_ask_price":   t.BestAskPrice,
		"mark_iv":          t.MarkIV,
		"index_price":      t.IndexPrice,
		"underlying_price": t.UnderlyingPrice,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("ticker %s: %s is not finite", instrument, name)
		}
	}
	if t.MarkIV != nil && *t.MarkIV < 0 {
		return fmt.Errorf("ticker %s: negative mark_iv %v", instrument, *t.MarkIV)
	}
	return nil
}

// GetInstrumentsOptions configures a GetInstruments request.
type GetInstrumentsOptions struct {
	Currency string // BTC, ETH, USDC, ...
	Kind     string // option, future, spot, future_combo, option_combo; empty for all
	Expired  bool
}
