// Package market resolves the instrument universe polled each cycle.
//
// The universe is listed fresh per cycle from the exchange catalog, one
// request per configured currency. A currency whose listing fails contributes
// no instruments to that cycle; the others proceed.
package market
