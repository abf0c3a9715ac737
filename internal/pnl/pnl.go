// Package pnl implements the P&L Monitor: independent attribution of
// yield, funding, price, and fee sources since the prior tick, summed and
// converted to share-class currency, with drift against the observed
// equity change recorded as a non-fatal diagnostic.
package pnl

import "github.com/shopspring/decimal"

// FeeEvent is one execution fee realized since the prior tick, as reported
// by a venue handshake.
type FeeEvent struct {
	Currency string
	Amount   decimal.Decimal
}

// Attribution holds the four independently computed P&L sources, all in
// the strategy's reference asset.
type Attribution struct {
	Yield   decimal.Decimal
	Funding decimal.Decimal
	Price   decimal.Decimal
	Fees    decimal.Decimal
}

// Sum returns the attributed total across all four sources.
func (a Attribution) Sum() decimal.Decimal {
	return a.Yield.Add(a.Funding).Add(a.Price).Sub(a.Fees)
}

// Snapshot is the full per-tick P&L computation.
type Snapshot struct {
	Attribution         Attribution
	ObservedEquityDelta decimal.Decimal // reference asset, from token_equity change
	ReconciliationDrift decimal.Decimal // Attribution.Sum() - ObservedEquityDelta
	DriftExceeded       bool
	ShareClassTotal     decimal.Decimal // Attribution.Sum() converted to share-class currency
}
