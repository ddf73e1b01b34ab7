package model

import "time"

// Kind is the instrument class encoded in a Deribit instrument name.
type Kind string

const (
	KindOption  Kind = "option"
	KindFuture  Kind = "future"
	KindUnknown Kind = "unknown"
)

// OptionType is the closed set of option rights.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
	OptionNone OptionType = "none"
)

func (o OptionType) String() string {
	if o == "" {
		return string(OptionNone)
	}
	return string(o)
}

// -----------------------------------------------------------------------------
// Snapshot Types
// -----------------------------------------------------------------------------

// RawSnapshotRow is one ticker observation for one instrument in one slot.
type RawSnapshotRow struct {
	SlotTime       time.Time  // Aligned cycle boundary (UTC)
	ObservedTime   time.Time  // Actual time the ticker was fetched (UTC)
	Underlying     string     // Currency label the instrument was listed under (e.g. "BTC")
	InstrumentName string     // Exchange identifier (e.g. "BTC-27OCT25-65000-C")
	Expiry         *time.Time // Settlement time, nil when the name does not parse
	Strike         *float64
	OptionType     OptionType

	Bid *float64
	Ask *float64
	Mid *float64 // Set only when both Bid and Ask are present
	IV  *float64 // Fractional mark IV

	Delta *float64
	Gamma *float64
	Vega  *float64
	Theta *float64
	Rho   *float64

	IndexPrice      *float64
	UnderlyingPrice *float64
}

// CanonicalRow is a row of the canonical dataset, in canonical column order.
type CanonicalRow struct {
	Timestamp      time.Time // Slot time
	Underlying     string
	InstrumentName string
	Expiry         *time.Time
	Strike         *float64
	OptionType     OptionType
	Bid            *float64
	Ask            *float64
	Mid            *float64
	IV             *float64
	Delta          *float64
	Gamma          *float64
	Vega           *float64
	Theta          *float64
	Rho            *float64
	F              *float64 // Underlying (forward) price
	S              *float64 // Index (spot) price
	Spread         *float64 // Relative spread (ask-bid)/mid
	Moneyness      *float64 // log(strike / reference price)
	IVFlagOutlier  bool
}

// SmileRow aggregates canonical rows sharing (underlying, expiry, option type, strike).
type SmileRow struct {
	SlotTime   time.Time
	Underlying string
	Expiry     *time.Time
	OptionType OptionType
	Strike     *float64

	Bid       *float64
	Ask       *float64
	Mid       *float64
	IV        *float64
	Delta     *float64
	Gamma     *float64
	Vega      *float64
	Theta     *float64
	Rho       *float64
	S         *float64
	F         *float64
	Spread    *float64
	Moneyness *float64

	Count int // Contributing canonical rows
}

// Float returns a pointer to v. Helper for building nullable fields.
func Float(v float64) *float64 {
	return &v
}
