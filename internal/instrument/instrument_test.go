package instrument

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/deribit-smiles/internal/model"
)

func TestParseOption(t *testing.T) {
	c := Parse("BTC-27OCT25-65000-C")

	assert.Equal(t, model.KindOption, c.Kind)
	assert.Equal(t, "BTC", c.Underlying)
	assert.Equal(t, time.Date(2025, 10, 27, 0, 0, 0, 0, time.UTC), c.Expiry)
	assert.Equal(t, model.OptionCall, c.OptionType)
	require.NotNil(t, c.Strike)
	assert.Equal(t, 65000.0, *c.Strike)
}

func TestParsePut(t *testing.T) {
	c := Parse("ETH-5DEC25-3200-P")

	assert.Equal(t, model.KindOption, c.Kind)
	assert.Equal(t, "ETH", c.Underlying)
	assert.Equal(t, time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), c.Expiry)
	assert.Equal(t, model.OptionPut, c.OptionType)
	require.NotNil(t, c.Strike)
	assert.Equal(t, 3200.0, *c.Strike)
}

func TestParseFuture(t *testing.T) {
	c := Parse("BTC-27OCT25")

	assert.Equal(t, model.KindFuture, c.Kind)
	assert.Equal(t, "BTC", c.Underlying)
	assert.Equal(t, time.Date(2025, 10, 27, 0, 0, 0, 0, time.UTC), c.Expiry)
	assert.Equal(t, model.OptionNone, c.OptionType)
	assert.Nil(t, c.Strike)
}

func TestParseLinearDecimalStrike(t *testing.T) {
	c := Parse("XRP_USDC-30MAY25-2d25-C")

	assert.Equal(t, model.KindOption, c.Kind)
	assert.Equal(t, "XRP_USDC", c.Underlying)
	require.NotNil(t, c.Strike)
	assert.InDelta(t, 2.25, *c.Strike, 1e-12)
}

func TestParseUnknown(t *testing.T) {
	inputs := []string{
		"garbage",
		"",
		"BTC-PERPETUAL",
		"BTC-27XYZ25-65000-C", // bad month
		"BTC-31FEB25-65000-C", // bad calendar day
		"btc-27OCT25-65000-C", // lowercase underlying
		"BTC-27OCT25-65000-X", // bad right
		"BTC-27OCT25-65000",   // strike without right
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			c := Parse(in)
			assert.Equal(t, model.KindUnknown, c.Kind)
			assert.Empty(t, c.Underlying)
			assert.True(t, c.Expiry.IsZero())
			assert.Equal(t, model.OptionNone, c.OptionType)
			assert.Nil(t, c.Strike)
			assert.Nil(t, c.Settlement())
		})
	}
}

func TestSettlement(t *testing.T) {
	c := Parse("BTC-27OCT25-65000-C")
	s := c.Settlement()
	require.NotNil(t, s)
	assert.Equal(t, time.Date(2025, 10, 27, 8, 0, 0, 0, time.UTC), *s)
}

func TestParseExpiryDates(t *testing.T) {
	tests := []struct {
		code string
		want time.Time
	}{
		{"27OCT25", time.Date(2025, 10, 27, 0, 0, 0, 0, time.UTC)},
		{"5DEC25", time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)},
		{"29FEB24", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"29FEB25", time.Time{}},
		{"27ABC25", time.Time{}},
	}

	for _, tt := range tests {
		c := Parse("BTC-" + tt.code)
		assert.Equal(t, tt.want, c.Expiry, tt.code)
		if tt.want.IsZero() {
			assert.Equal(t, model.KindUnknown, c.Kind, tt.code)
		} else {
			assert.Equal(t, model.KindFuture, c.Kind, tt.code)
		}
	}
}
