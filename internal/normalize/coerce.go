package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/deribit-smiles/internal/model"
)

// SecondsThreshold separates second and millisecond epochs: numeric timestamps
// with magnitude above it are already milliseconds.
const SecondsThreshold = 1e12

// MaxEpochMillis bounds numeric timestamps to the nanosecond-representable
// range (years 1677 to 2262).
const MaxEpochMillis = math.MaxInt64 / int64(time.Millisecond)

// TimestampError reports a timestamp value that could not be converted.
type TimestampError struct {
	Column string
	Value  any
	Err    error
}

func (e *TimestampError) Error() string {
	col := e.Column
	if col == "" {
		col = "timestamp"
	}
	if e.Err != nil {
		return fmt.Sprintf("normalize %s: cannot convert %v (%T): %v", col, e.Value, e.Value, e.Err)
	}
	return fmt.Sprintf("normalize %s: cannot convert %v (%T)", col, e.Value, e.Value)
}

func (e *TimestampError) Unwrap() error {
	return e.Err
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ToUTCMillis converts a timestamp to milliseconds since the Unix epoch (UTC).
//
// Numbers at or below SecondsThreshold are seconds, larger ones milliseconds.
// Strings are parsed as ISO-style timestamps (no zone means UTC) and floored
// to the millisecond. A missing or unparseable value is a *TimestampError.
func ToUTCMillis(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, &TimestampError{Value: v, Err: fmt.Errorf("missing value")}
	case time.Time:
		if t.IsZero() {
			return 0, &TimestampError{Value: v, Err: fmt.Errorf("zero time")}
		}
		return t.UnixMilli(), nil
	case *time.Time:
		if t == nil {
			return 0, &TimestampError{Value: v, Err: fmt.Errorf("missing value")}
		}
		return ToUTCMillis(*t)
	case bool:
		return 0, &TimestampError{Value: v}
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, &TimestampError{Value: v, Err: fmt.Errorf("empty string")}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToMillis(f, v)
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UnixMilli(), nil
			}
		}
		return 0, &TimestampError{Value: v, Err: fmt.Errorf("unrecognized format")}
	}

	if p := ToFloat(v); p != nil {
		return epochToMillis(*p, v)
	}
	return 0, &TimestampError{Value: v}
}

func epochToMillis(f float64, orig any) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &TimestampError{Value: orig, Err: fmt.Errorf("not finite")}
	}
	ms := f
	if math.Abs(f) <= SecondsThreshold {
		ms = f * 1000
	}
	if math.Abs(ms) > float64(MaxEpochMillis) {
		return 0, &TimestampError{Value: orig, Err: fmt.Errorf("out of range")}
	}
	return int64(ms), nil
}

// ToFloat coerces a value to float64. Unparseable, missing and NaN values yield nil.
func ToFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case *float64:
		if t == nil {
			return nil
		}
		f = *t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case bool:
		if t {
			f = 1
		}
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// NormalizeOptionType maps a raw option type into {call, put, none}.
//
// Matching is case-insensitive: C, CALL, 1, TRUE are calls; P, PUT, 0, FALSE
// are puts; anything else, including nil, is none.
func NormalizeOptionType(v any) model.OptionType {
	if v == nil {
		return model.OptionNone
	}
	var s string
	switch t := v.(type) {
	case model.OptionType:
		s = string(t)
	case string:
		s = t
	case *string:
		if t == nil {
			return model.OptionNone
		}
		s = *t
	default:
		s = fmt.Sprint(v)
	}

	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "C", "CALL", "1", "TRUE":
		return model.OptionCall
	case "P", "PUT", "0", "FALSE":
		return model.OptionPut
	}
	return model.OptionNone
}
