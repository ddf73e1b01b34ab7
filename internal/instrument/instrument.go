package instrument

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/deribit-smiles/internal/model"
)

// SettlementHour is the UTC hour at which Deribit instruments expire.
const SettlementHour = 8

var (
	optionPattern = regexp.MustCompile(`^([A-Z0-9_]+)-(\d{1,2})([A-Z]{3})(\d{2})-(\d+(?:[.d]\d+)?)-([CP])$`)
	futurePattern = regexp.MustCompile(`^([A-Z0-9_]+)-(\d{1,2})([A-Z]{3})(\d{2})$`)
)

var months = map[string]time.Month{
	"JAN": time.January,
	"FEB": time.February,
	"MAR": time.March,
	"APR": time.April,
	"MAY": time.May,
	"JUN": time.June,
	"JUL": time.July,
	"AUG": time.August,
	"SEP": time.September,
	"OCT": time.October,
	"NOV": time.November,
	"DEC": time.December,
}

// Code is a parsed instrument name.
type Code struct {
	Kind       model.Kind
	Underlying string
	Expiry     time.Time // Expiry date at 00:00 UTC, zero for KindUnknown
	OptionType model.OptionType
	Strike     *float64 // Options only
}

// Unknown is the result for names that match no grammar.
var Unknown = Code{Kind: model.KindUnknown, OptionType: model.OptionNone}

// Settlement returns the settlement instant (expiry date at 08:00 UTC), or nil if unknown.
func (c Code) Settlement() *time.Time {
	if c.Expiry.IsZero() {
		return nil
	}
	t := c.Expiry.Add(SettlementHour * time.Hour)
	return &t
}

// Parse parses a Deribit instrument name.
func Parse(name string) Code {
	if m := optionPattern.FindStringSubmatch(name); m != nil {
		expiry, ok := parseExpiry(m[2], m[3], m[4])
		if !ok {
			return Unknown
		}
		strike, err := strconv.ParseFloat(strings.Replace(m[5], "d", ".", 1), 64)
		if err != nil {
			return Unknown
		}
		opt := model.OptionCall
		if m[6] == "P" {
			opt = model.OptionPut
		}
		return Code{
			Kind:       model.KindOption,
			Underlying: m[1],
			Expiry:     expiry,
			OptionType: opt,
			Strike:     &strike,
		}
	}

	if m := futurePattern.FindStringSubmatch(name); m != nil {
		expiry, ok := parseExpiry(m[2], m[3], m[4])
		if !ok {
			return Unknown
		}
		return Code{
			Kind:       model.KindFuture,
			Underlying: m[1],
			Expiry:     expiry,
			OptionType: model.OptionNone,
		}
	}

	return Unknown
}

func parseExpiry(day, mon, yy string) (time.Time, bool) {
	month, ok := months[mon]
	if !ok {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(yy)
	if err != nil {
		return time.Time{}, false
	}

	t := time.Date(2000+y, month, d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31FEB into March; reject instead.
	if t.Day() != d || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}
