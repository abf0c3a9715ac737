// Package exposure implements the Exposure Monitor: the conversion chain
// from scaled balances through underlying, reference-asset, and
// quote-currency amounts for every position.
package exposure

import "github.com/sawpanic/basisengine/internal/money"

// Quadruple is the per-key exposure breakdown.
type Quadruple struct {
	Native          money.ScaledAmount
	Underlying      money.UnderlyingAmount
	ReferenceAsset  money.ReferenceAmount
	Quote           money.QuoteAmount
}

// Snapshot is the full per-tick exposure computation.
type Snapshot struct {
	ByKey       map[string]Quadruple
	NetDelta    money.ReferenceAmount
	TokenEquity money.ReferenceAmount
	TotalValue  money.QuoteAmount
}
