package exposure

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/errs"
	"github.com/sawpanic/basisengine/internal/money"
	"github.com/sawpanic/basisengine/internal/position"
)

// Monitor computes an exposure Snapshot from a position Snapshot and a
// market Snapshot. ReferenceAsset is the strategy's reference asset
// symbol (typically "ETH" or the spot asset); ShareAsset is the
// share-class currency symbol ("USDT" or "ETH").
type Monitor struct {
	ReferenceAsset string
	ShareAsset     string
}

func New(referenceAsset, shareAsset string) *Monitor {
	return &Monitor{ReferenceAsset: referenceAsset, ShareAsset: shareAsset}
}

// Compute produces the exposure quadruple for every position and the
// aggregate net delta, token equity, and total value.
func (m *Monitor) Compute(snap position.Snapshot, market dataprovider.Snapshot) (Snapshot, error) {
	out := Snapshot{
		ByKey:       make(map[string]Quadruple, len(snap.Positions)),
		NetDelta:    money.NewReference(0),
		TokenEquity: money.NewReference(0),
		TotalValue:  money.NewQuote(0),
	}

	for key, pos := range snap.Positions {
		underlying, err := m.toUnderlying(key, pos, market)
		if err != nil {
			return Snapshot{}, err
		}

		sign := 1
		if key.IsDebt() {
			sign = -1
		}
		if key.IsPerp() && pos.Entry != nil && pos.Entry.Side == position.SideShort {
			sign = -1
		}

		refAmt, err := m.toReference(key, underlying, market)
		if err != nil {
			return Snapshot{}, err
		}
		if sign < 0 {
			refAmt = refAmt.Neg()
		}

		quoteAmt := m.toQuote(refAmt, market)

		out.ByKey[key.String()] = Quadruple{
			Native:         pos.ScaledAmount,
			Underlying:     underlying,
			ReferenceAsset: refAmt,
			Quote:          quoteAmt,
		}

		out.NetDelta = out.NetDelta.Add(refAmt)
		out.TotalValue = out.TotalValue.Add(quoteAmt)
		if !key.IsPerp() {
			out.TokenEquity = out.TokenEquity.Add(refAmt)
		}
	}
	return out, nil
}

// toUnderlying applies the protocol index for lending tokens (liquidity
// index for collateral, borrow index for debt) or treats the scaled
// amount as underlying directly for non-lending tokens.
func (m *Monitor) toUnderlying(key position.Key, pos position.Position, market dataprovider.Snapshot) (money.UnderlyingAmount, error) {
	if !key.IsLendingToken() {
		return pos.ScaledAmount.IdentityUnderlying(), nil
	}

	idx, ok := market.Indices[dataprovider.ProtocolToken{Protocol: string(key.Venue), Token: key.Symbol}]
	if !ok {
		return money.UnderlyingAmount{}, fmt.Errorf("%w: EXP.InvalidIndex: no index for %s", errs.IndexInvalid, key)
	}
	index := idx.LiquidityIndex
	if key.IsDebt() {
		index = idx.BorrowIndex
	}
	if index.Sign() <= 0 {
		return money.UnderlyingAmount{}, fmt.Errorf("%w: EXP.InvalidIndex: non-positive index for %s", errs.IndexInvalid, key)
	}
	return pos.ScaledAmount.ToUnderlying(index), nil
}

// toReference converts an underlying amount to the reference asset via an
// oracle price, or treats it as already reference-denominated when the
// position's symbol equals the reference asset.
func (m *Monitor) toReference(key position.Key, underlying money.UnderlyingAmount, market dataprovider.Snapshot) (money.ReferenceAmount, error) {
	baseSymbol := symbolOf(key)
	if baseSymbol == m.ReferenceAsset {
		return money.ReferenceFromDecimal(underlying.Decimal()), nil
	}

	price, ok := market.Oracles[dataprovider.AssetPair{Base: baseSymbol, Quote: m.ReferenceAsset}]
	if !ok {
		if underlying.Sign() > 0 {
			return money.ReferenceAmount{}, fmt.Errorf("%w: EXP.OracleMissing: no oracle price for %s/%s", errs.OracleInvalid, baseSymbol, m.ReferenceAsset)
		}
		price = decimal.Zero
	}
	if price.Sign() < 0 {
		return money.ReferenceAmount{}, fmt.Errorf("%w: EXP.OracleMissing: negative oracle price for %s/%s", errs.OracleInvalid, baseSymbol, m.ReferenceAsset)
	}
	return underlying.ToReference(price), nil
}

// toQuote converts a reference-asset amount to the share-class currency
// via the end-of-tick spot price. When the reference asset already is the
// share-class currency, this is identity.
func (m *Monitor) toQuote(ref money.ReferenceAmount, market dataprovider.Snapshot) money.QuoteAmount {
	if m.ReferenceAsset == m.ShareAsset {
		return money.QuoteFromDecimal(ref.Decimal())
	}
	spot, ok := market.PricesUSD[m.ReferenceAsset]
	if !ok {
		spot = decimal.Zero
	}
	return ref.ToQuote(spot)
}

// symbolOf strips a lending-token prefix (e.g. "aWEETH" -> "WEETH") so the
// oracle lookup targets the underlying asset, not the wrapper token.
func symbolOf(key position.Key) string {
	sym := key.Symbol
	switch key.Type {
	case position.TypeAToken:
		if len(sym) > 1 && sym[0] == 'a' {
			return sym[1:]
		}
	}
	return sym
}
