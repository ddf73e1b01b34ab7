package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetInstruments lists instruments for one currency.
func (c *Client) GetInstruments(ctx context.Context, opts GetInstrumentsOptions) ([]Instrument, error) {
	query := url.Values{}
	query.Set("currency", opts.Currency)
	if opts.Kind != "" {
		query.Set("kind", opts.Kind)
	}
	query.Set("expired", strconv.FormatBool(opts.Expired))

	res, err := get[[]Instrument](ctx, c, "/public/get_instruments", query)
	if err != nil {
		return nil, fmt.Errorf("get instruments %s: %w", opts.Currency, err)
	}
	return *res, nil
}

// GetTicker fetches the ticker for one instrument.
//
// GetTicker makes a single attempt; the poller owns the retry policy for tickers.
func (c *Client) GetTicker(ctx context.Context, instrument string) (*Ticker, error) {
	query := url.Values{}
	query.Set("instrument_name", instrument)

	res, err := getOnce[Ticker](ctx, c, "/public/ticker", query)
	if err != nil {
		return nil, fmt.Errorf("get ticker %s: %w", instrument, err)
	}
	if err := res.Validate(instrument); err != nil {
		return nil, err
	}
	return res, nil
}
