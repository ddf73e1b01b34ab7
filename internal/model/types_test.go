package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionTypeString(t *testing.T) {
	tests := []struct {
		in   OptionType
		want string
	}{
		{OptionCall, "call"},
		{OptionPut, "put"},
		{OptionNone, "none"},
		{"", "none"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String(), "OptionType(%q)", string(tt.in))
	}
}

func TestFloat(t *testing.T) {
	p := Float(1.5)
	require.NotNil(t, p)
	assert.Equal(t, 1.5, *p)

	// fresh pointer per call
	assert.NotSame(t, p, Float(1.5))
}

func TestRawSnapshotRowNullableFields(t *testing.T) {
	slot := time.Date(2025, 10, 1, 12, 30, 0, 0, time.UTC)
	r := RawSnapshotRow{
		SlotTime:       slot,
		Underlying:     "BTC",
		InstrumentName: "BTC-27OCT25",
		OptionType:     OptionNone,
		Bid:            Float(100),
	}

	assert.Nil(t, r.Ask)
	assert.Nil(t, r.Mid)
	assert.True(t, r.SlotTime.Equal(slot))
}
