// Package api provides a client for the Deribit public REST API (JSON-RPC over HTTP GET).
//
// Endpoints used:
//   - /public/get_instruments: instrument catalog per currency and kind
//   - /public/ticker: best bid/ask, mark IV, greeks and reference prices for one instrument
//
// Production base URL: https://www.deribit.com/api/v2
// Test base URL:       https://test.deribit.com/api/v2
package api
