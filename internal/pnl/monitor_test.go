package pnl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/money"
	"github.com/sawpanic/basisengine/internal/position"
)

func TestCompute_YieldFromIndexGrowth(t *testing.T) {
	key := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aUSDT")

	prevPos := position.Snapshot{Timestamp: time.Unix(0, 0), Positions: map[position.Key]position.Position{
		key: {Key: key, ScaledAmount: money.NewScaled(100000)},
	}}
	curPos := position.Snapshot{Timestamp: time.Unix(3600, 0), Positions: map[position.Key]position.Position{
		key: {Key: key, ScaledAmount: money.NewScaled(100000)},
	}}

	prevMarket := dataprovider.NewEmptySnapshot()
	prevMarket.Indices[dataprovider.ProtocolToken{Protocol: "aave_v3", Token: "aUSDT"}] = dataprovider.Index{
		LiquidityIndex: decimal.NewFromFloat(1.0), BorrowIndex: decimal.NewFromFloat(1.0),
	}
	curMarket := dataprovider.NewEmptySnapshot()
	curMarket.Indices[dataprovider.ProtocolToken{Protocol: "aave_v3", Token: "aUSDT"}] = dataprovider.Index{
		LiquidityIndex: decimal.NewFromFloat(1.0001), BorrowIndex: decimal.NewFromFloat(1.0),
	}
	curMarket.PricesUSD["USDT"] = decimal.NewFromInt(1)

	prevExp := exposure.Snapshot{TokenEquity: money.NewReference(100000), ByKey: map[string]exposure.Quadruple{}}
	curExp := exposure.Snapshot{TokenEquity: money.NewReference(100010), ByKey: map[string]exposure.Quadruple{}}

	m := New("USDT", "USDT")
	out := m.Compute(prevPos, prevMarket, prevExp, curPos, curMarket, curExp, nil)

	expectedYield := decimal.NewFromInt(100000).Mul(decimal.NewFromFloat(0.0001))
	assert.True(t, out.Attribution.Yield.Equal(expectedYield), "yield = base_scaled * index delta")
}

func TestCompute_DriftRecordedWhenAttributionMismatchesObserved(t *testing.T) {
	prevExp := exposure.Snapshot{TokenEquity: money.NewReference(100), ByKey: map[string]exposure.Quadruple{}}
	curExp := exposure.Snapshot{TokenEquity: money.NewReference(150), ByKey: map[string]exposure.Quadruple{}}

	m := New("ETH", "ETH")
	out := m.Compute(
		position.Snapshot{Positions: map[position.Key]position.Position{}},
		dataprovider.NewEmptySnapshot(),
		prevExp,
		position.Snapshot{Positions: map[position.Key]position.Position{}},
		dataprovider.NewEmptySnapshot(),
		curExp,
		nil,
	)

	assert.True(t, out.DriftExceeded, "attributed zero sources vs +50 observed equity change must be flagged")
	assert.True(t, out.ReconciliationDrift.Equal(decimal.NewFromInt(-50)))
}

// TestCompute_PriceAttributionExcludesPerpAndLendingKeys guards against a
// drift false-positive: a perp key's reference-asset move must not enter
// computePrice, since TokenEquity excludes perp notional and would then
// disagree with attr.Sum() on every tick with perp mark movement. A
// lending key's move is excluded too, since computeYield already accounts
// for it via index growth.
func TestCompute_PriceAttributionExcludesPerpAndLendingKeys(t *testing.T) {
	perpKey := position.NewKey(position.VenueBinance, position.TypePerp, "ETH-PERP")
	lendKey := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aETH")
	spotKey := position.NewKey(position.VenueWallet, position.TypeSpot, "ETH")

	prevExp := exposure.Snapshot{
		TokenEquity: money.NewReference(100),
		ByKey: map[string]exposure.Quadruple{
			perpKey.String(): {ReferenceAsset: money.ReferenceFromDecimal(decimal.NewFromInt(0))},
			lendKey.String(): {ReferenceAsset: money.ReferenceFromDecimal(decimal.NewFromInt(50))},
			spotKey.String(): {ReferenceAsset: money.ReferenceFromDecimal(decimal.NewFromInt(50))},
		},
	}
	curExp := exposure.Snapshot{
		TokenEquity: money.NewReference(105),
		ByKey: map[string]exposure.Quadruple{
			perpKey.String(): {ReferenceAsset: money.ReferenceFromDecimal(decimal.NewFromInt(20))},
			lendKey.String(): {ReferenceAsset: money.ReferenceFromDecimal(decimal.NewFromInt(50))},
			spotKey.String(): {ReferenceAsset: money.ReferenceFromDecimal(decimal.NewFromInt(55))},
		},
	}

	m := New("ETH", "ETH")
	price := m.computePrice(prevExp, curExp)

	assert.True(t, price.Equal(decimal.NewFromInt(5)), "price attribution must only reflect the spot key's +5 move, got %s", price)
}

func TestCompute_FeesReduceTotal(t *testing.T) {
	prevExp := exposure.Snapshot{TokenEquity: money.NewReference(100), ByKey: map[string]exposure.Quadruple{}}
	curExp := exposure.Snapshot{TokenEquity: money.NewReference(100), ByKey: map[string]exposure.Quadruple{}}

	m := New("ETH", "ETH")
	out := m.Compute(
		position.Snapshot{Positions: map[position.Key]position.Position{}},
		dataprovider.NewEmptySnapshot(),
		prevExp,
		position.Snapshot{Positions: map[position.Key]position.Position{}},
		dataprovider.NewEmptySnapshot(),
		curExp,
		[]FeeEvent{{Currency: "ETH", Amount: decimal.NewFromFloat(0.01)}},
	)

	assert.True(t, out.Attribution.Fees.Equal(decimal.NewFromFloat(0.01)))
	assert.True(t, out.Attribution.Sum().Equal(decimal.NewFromFloat(-0.01)))
}
