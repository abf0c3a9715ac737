package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/position"
)

// DriftTolerance is the absolute reference-asset mismatch above which a
// tick's attributed sources and observed equity change are considered to
// have diverged meaningfully enough to record a drift warning.
const DriftTolerance = 1e-6

// Monitor computes per-tick P&L attribution. ReferenceAsset and ShareAsset
// mirror the Exposure Monitor's configuration so the two stay consistent.
type Monitor struct {
	ReferenceAsset string
	ShareAsset     string
}

func New(referenceAsset, shareAsset string) *Monitor {
	return &Monitor{ReferenceAsset: referenceAsset, ShareAsset: shareAsset}
}

// Compute attributes the equity change between prev and cur to yield,
// funding, price, and fees, independently, then compares the sum against
// the observed token_equity delta.
func (m *Monitor) Compute(
	prevPos position.Snapshot, prevMarket dataprovider.Snapshot, prevExp exposure.Snapshot,
	curPos position.Snapshot, curMarket dataprovider.Snapshot, curExp exposure.Snapshot,
	fees []FeeEvent,
) Snapshot {
	attr := Attribution{
		Yield:   m.computeYield(prevPos, prevMarket, curPos, curMarket),
		Funding: m.computeFunding(curPos, curMarket),
		Price:   m.computePrice(prevExp, curExp),
		Fees:    m.computeFees(fees, curMarket),
	}

	observedDelta := curExp.TokenEquity.Decimal().Sub(prevExp.TokenEquity.Decimal())
	drift := attr.Sum().Sub(observedDelta)

	snap := Snapshot{
		Attribution:         attr,
		ObservedEquityDelta: observedDelta,
		ReconciliationDrift: drift,
		DriftExceeded:       drift.Abs().GreaterThan(decimal.NewFromFloat(DriftTolerance)),
	}
	snap.ShareClassTotal = m.toShareClass(attr.Sum(), curMarket)
	return snap
}

// computeYield attributes underlying growth from protocol index movement
// on lending collateral, net of interest accrual on lending debt, using
// the smaller of the two snapshots' scaled amounts as the accrual base so
// a tick that also traded the position does not double-count the trade as
// yield.
func (m *Monitor) computeYield(prevPos position.Snapshot, prevMarket dataprovider.Snapshot, curPos position.Snapshot, curMarket dataprovider.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for key, cur := range curPos.Positions {
		if !key.IsLendingToken() {
			continue
		}
		prev, ok := prevPos.Positions[key]
		if !ok {
			continue
		}
		base := decimal.Min(prev.ScaledAmount.Decimal(), cur.ScaledAmount.Decimal())
		if base.Sign() <= 0 {
			continue
		}

		curIdx, okCur := curMarket.Indices[dataprovider.ProtocolToken{Protocol: string(key.Venue), Token: key.Symbol}]
		prevIdx, okPrev := prevMarket.Indices[dataprovider.ProtocolToken{Protocol: string(key.Venue), Token: key.Symbol}]
		if !okCur || !okPrev {
			continue
		}

		var curI, prevI decimal.Decimal
		if key.IsDebt() {
			curI, prevI = curIdx.BorrowIndex, prevIdx.BorrowIndex
		} else {
			curI, prevI = curIdx.LiquidityIndex, prevIdx.LiquidityIndex
		}
		underlyingDelta := base.Mul(curI.Sub(prevI))
		refDelta := m.toReference(baseSymbolOf(key), underlyingDelta, curMarket)
		if key.IsDebt() {
			total = total.Sub(refDelta)
		} else {
			total = total.Add(refDelta)
		}
	}
	return total
}

// computeFunding sums signed funding on open perp positions for the
// current tick's observed rate; a long pays funding when the rate is
// positive, a short receives it.
func (m *Monitor) computeFunding(curPos position.Snapshot, curMarket dataprovider.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for key, pos := range curPos.Positions {
		if !key.IsPerp() || pos.Entry == nil {
			continue
		}
		rate, ok := curMarket.Funding[dataprovider.VenueInstrument{Venue: string(key.Venue), Instrument: key.Symbol}]
		if !ok {
			continue
		}
		notionalRef := m.toReference(baseSymbolOf(key), pos.ScaledAmount.Decimal().Mul(decimal.NewFromFloat(pos.Entry.EntryPrice)), curMarket)
		sign := decimal.NewFromInt(1)
		if pos.Entry.Side == position.SideShort {
			sign = decimal.NewFromInt(-1)
		}
		total = total.Sub(sign.Mul(notionalRef).Mul(rate))
	}
	return total
}

// computePrice is the mark-to-market change on every non-lending, non-perp
// position between the two exposure snapshots. Lending positions are
// excluded because their growth is attributed as yield in computeYield, and
// perp positions are excluded because TokenEquity excludes perp notional,
// so including them here would drift computePrice away from
// observedDelta on any tick with perp mark movement.
func (m *Monitor) computePrice(prevExp, curExp exposure.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for keyStr, cur := range curExp.ByKey {
		prev, ok := prevExp.ByKey[keyStr]
		if !ok {
			continue
		}
		key, err := position.ParseKey(keyStr)
		if err != nil || key.IsPerp() || key.IsLendingToken() {
			continue
		}
		total = total.Add(cur.ReferenceAsset.Decimal().Sub(prev.ReferenceAsset.Decimal()))
	}
	return total
}

func (m *Monitor) computeFees(fees []FeeEvent, curMarket dataprovider.Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, fee := range fees {
		total = total.Add(m.toReference(fee.Currency, fee.Amount, curMarket))
	}
	return total
}

func (m *Monitor) toReference(symbol string, amount decimal.Decimal, market dataprovider.Snapshot) decimal.Decimal {
	if symbol == m.ReferenceAsset {
		return amount
	}
	if price, ok := market.PricesReference[symbol]; ok {
		return amount.Mul(price)
	}
	if price, ok := market.Oracles[dataprovider.AssetPair{Base: symbol, Quote: m.ReferenceAsset}]; ok {
		return amount.Mul(price)
	}
	return decimal.Zero
}

func (m *Monitor) toShareClass(ref decimal.Decimal, market dataprovider.Snapshot) decimal.Decimal {
	if m.ReferenceAsset == m.ShareAsset {
		return ref
	}
	spot, ok := market.PricesUSD[m.ReferenceAsset]
	if !ok {
		return decimal.Zero
	}
	return ref.Mul(spot)
}

func baseSymbolOf(key position.Key) string {
	sym := key.Symbol
	if key.Type == position.TypeAToken && len(sym) > 1 && sym[0] == 'a' {
		return sym[1:]
	}
	return sym
}
