// Package money defines the distinct numeric types that flow through the
// conversion chain from a lending-protocol position's raw scaled balance,
// to its index-adjusted underlying quantity, to its value in the
// strategy's reference asset, to its value in share-class currency.
//
// The four types wrap decimal.Decimal but are not interchangeable: the only
// function allowed to turn a ScaledAmount into an UnderlyingAmount is an
// index multiplication, and the only functions allowed to turn an
// UnderlyingAmount into a ReferenceAmount or QuoteAmount are oracle/spot
// price multiplications. Risk and P&L code that accepts a ScaledAmount
// where an UnderlyingAmount is expected fails to compile.
package money

import "github.com/shopspring/decimal"

// ScaledAmount is a raw on-venue quantity: an ERC-20 scaled balance for
// lending-protocol tokens, or a plain quantity for non-lending positions.
// It changes only via applied execution deltas.
type ScaledAmount struct{ d decimal.Decimal }

// UnderlyingAmount is the economic quantity after applying a protocol
// liquidity/borrow index to a ScaledAmount.
type UnderlyingAmount struct{ d decimal.Decimal }

// ReferenceAmount is an amount denominated in the strategy's reference
// asset (typically ETH or the spot asset).
type ReferenceAmount struct{ d decimal.Decimal }

// QuoteAmount is an amount denominated in the share-class currency
// (USDT or ETH).
type QuoteAmount struct{ d decimal.Decimal }

func NewScaled(v float64) ScaledAmount         { return ScaledAmount{decimal.NewFromFloat(v)} }
func NewUnderlying(v float64) UnderlyingAmount { return UnderlyingAmount{decimal.NewFromFloat(v)} }
func NewReference(v float64) ReferenceAmount   { return ReferenceAmount{decimal.NewFromFloat(v)} }
func NewQuote(v float64) QuoteAmount           { return QuoteAmount{decimal.NewFromFloat(v)} }

func ScaledFromDecimal(d decimal.Decimal) ScaledAmount         { return ScaledAmount{d} }
func UnderlyingFromDecimal(d decimal.Decimal) UnderlyingAmount { return UnderlyingAmount{d} }
func ReferenceFromDecimal(d decimal.Decimal) ReferenceAmount   { return ReferenceAmount{d} }
func QuoteFromDecimal(d decimal.Decimal) QuoteAmount           { return QuoteAmount{d} }

func (a ScaledAmount) Decimal() decimal.Decimal     { return a.d }
func (a UnderlyingAmount) Decimal() decimal.Decimal { return a.d }
func (a ReferenceAmount) Decimal() decimal.Decimal  { return a.d }
func (a QuoteAmount) Decimal() decimal.Decimal      { return a.d }

func (a ScaledAmount) IsZero() bool     { return a.d.IsZero() }
func (a UnderlyingAmount) IsZero() bool { return a.d.IsZero() }
func (a ReferenceAmount) IsZero() bool  { return a.d.IsZero() }
func (a QuoteAmount) IsZero() bool      { return a.d.IsZero() }

func (a ScaledAmount) Add(b ScaledAmount) ScaledAmount { return ScaledAmount{a.d.Add(b.d)} }
func (a ScaledAmount) Sub(b ScaledAmount) ScaledAmount { return ScaledAmount{a.d.Sub(b.d)} }
func (a ScaledAmount) Neg() ScaledAmount               { return ScaledAmount{a.d.Neg()} }
func (a ScaledAmount) Sign() int                       { return a.d.Sign() }

func (a UnderlyingAmount) Add(b UnderlyingAmount) UnderlyingAmount {
	return UnderlyingAmount{a.d.Add(b.d)}
}
func (a UnderlyingAmount) Sub(b UnderlyingAmount) UnderlyingAmount {
	return UnderlyingAmount{a.d.Sub(b.d)}
}
func (a UnderlyingAmount) Mul(f decimal.Decimal) UnderlyingAmount {
	return UnderlyingAmount{a.d.Mul(f)}
}
func (a UnderlyingAmount) Div(b UnderlyingAmount) decimal.Decimal { return a.d.Div(b.d) }
func (a UnderlyingAmount) Cmp(b UnderlyingAmount) int             { return a.d.Cmp(b.d) }
func (a UnderlyingAmount) Sign() int                              { return a.d.Sign() }

func (a ReferenceAmount) Add(b ReferenceAmount) ReferenceAmount {
	return ReferenceAmount{a.d.Add(b.d)}
}
func (a ReferenceAmount) Sub(b ReferenceAmount) ReferenceAmount {
	return ReferenceAmount{a.d.Sub(b.d)}
}
func (a ReferenceAmount) Neg() ReferenceAmount { return ReferenceAmount{a.d.Neg()} }
func (a ReferenceAmount) Abs() ReferenceAmount { return ReferenceAmount{a.d.Abs()} }

func (a QuoteAmount) Add(b QuoteAmount) QuoteAmount { return QuoteAmount{a.d.Add(b.d)} }
func (a QuoteAmount) Sub(b QuoteAmount) QuoteAmount { return QuoteAmount{a.d.Sub(b.d)} }

// ToUnderlying applies a protocol index (liquidity_index for collateral,
// borrow_index for debt) to a scaled balance. This is the only bridge
// permitted between the scaled and underlying domains.
func (a ScaledAmount) ToUnderlying(index decimal.Decimal) UnderlyingAmount {
	return UnderlyingAmount{a.d.Mul(index)}
}

// ToReference applies an oracle price (underlying/reference-asset rate).
func (a UnderlyingAmount) ToReference(oraclePrice decimal.Decimal) ReferenceAmount {
	return ReferenceAmount{a.d.Mul(oraclePrice)}
}

// ToQuote applies a spot price (reference-asset/share-class rate).
func (a ReferenceAmount) ToQuote(spotPrice decimal.Decimal) QuoteAmount {
	return QuoteAmount{a.d.Mul(spotPrice)}
}

// IdentityUnderlying treats a non-lending position's scaled amount as its
// own underlying amount.
func (a ScaledAmount) IdentityUnderlying() UnderlyingAmount {
	return UnderlyingAmount{a.d}
}
