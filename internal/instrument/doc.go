// Package instrument parses Deribit instrument names.
//
// Grammar:
//   - Option: <UNDERLYING>-<DDMMMYY>-<STRIKE>-<C|P>   e.g. BTC-27OCT25-65000-C
//   - Future: <UNDERLYING>-<DDMMMYY>                  e.g. BTC-27OCT25
//
// Anything else parses to KindUnknown with every other field empty. Parse never fails.
package instrument
