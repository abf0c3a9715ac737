package exposure

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/money"
	"github.com/sawpanic/basisengine/internal/position"
)

func TestCompute_UnderlyingGrowsWithIndex(t *testing.T) {
	key := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aWEETH")
	snap := position.Snapshot{
		Timestamp: time.Now(),
		Positions: map[position.Key]position.Position{
			key: {Key: key, ScaledAmount: money.NewScaled(10)},
		},
	}
	market := dataprovider.NewEmptySnapshot()
	market.Indices[dataprovider.ProtocolToken{Protocol: "aave_v3", Token: "aWEETH"}] = dataprovider.Index{
		LiquidityIndex: decimal.NewFromFloat(1.05),
		BorrowIndex:    decimal.NewFromFloat(1.0),
	}
	market.Oracles[dataprovider.AssetPair{Base: "WEETH", Quote: "ETH"}] = decimal.NewFromFloat(1.03)
	market.PricesUSD["ETH"] = decimal.NewFromInt(3000)

	m := New("ETH", "USDT")
	out, err := m.Compute(snap, market)
	require.NoError(t, err)

	q := out.ByKey[key.String()]
	assert.True(t, q.Underlying.Decimal().Equal(decimal.NewFromFloat(10.5)), "underlying = scaled * liquidity_index")
	assert.True(t, q.Underlying.Decimal().GreaterThanOrEqual(q.Native.Decimal()), "underlying >= scaled when index >= 1.0")

	expectedRef := decimal.NewFromFloat(10.5).Mul(decimal.NewFromFloat(1.03))
	assert.True(t, q.ReferenceAsset.Decimal().Equal(expectedRef))
}

func TestCompute_DebtContributesNegatively(t *testing.T) {
	collateral := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aWEETH")
	debt := position.NewKey(position.VenueAaveV3, position.TypeVariableDebt, "ETH")
	snap := position.Snapshot{
		Positions: map[position.Key]position.Position{
			collateral: {Key: collateral, ScaledAmount: money.NewScaled(10)},
			debt:       {Key: debt, ScaledAmount: money.NewScaled(8)},
		},
	}
	market := dataprovider.NewEmptySnapshot()
	market.Indices[dataprovider.ProtocolToken{Protocol: "aave_v3", Token: "aWEETH"}] = dataprovider.Index{LiquidityIndex: decimal.NewFromFloat(1.0), BorrowIndex: decimal.NewFromFloat(1.0)}
	market.Indices[dataprovider.ProtocolToken{Protocol: "aave_v3", Token: "ETH"}] = dataprovider.Index{LiquidityIndex: decimal.NewFromFloat(1.0), BorrowIndex: decimal.NewFromFloat(1.0)}
	market.Oracles[dataprovider.AssetPair{Base: "WEETH", Quote: "ETH"}] = decimal.NewFromFloat(1.0)

	m := New("ETH", "ETH")
	out, err := m.Compute(snap, market)
	require.NoError(t, err)

	assert.True(t, out.NetDelta.Decimal().Equal(decimal.NewFromFloat(2)), "net_delta = 10 collateral - 8 debt")
}

func TestCompute_MissingOracleFailsTick(t *testing.T) {
	key := position.NewKey(position.VenueEtherFi, position.TypeStaked, "WEETH")
	snap := position.Snapshot{
		Positions: map[position.Key]position.Position{
			key: {Key: key, ScaledAmount: money.NewScaled(5)},
		},
	}
	market := dataprovider.NewEmptySnapshot()
	m := New("ETH", "USDT")
	_, err := m.Compute(snap, market)
	assert.Error(t, err)
}

func TestCompute_PerpExcludedFromTokenEquity(t *testing.T) {
	perp := position.NewKey(position.VenueBinance, position.TypePerp, "ETH-PERP")
	snap := position.Snapshot{
		Positions: map[position.Key]position.Position{
			perp: {Key: perp, ScaledAmount: money.NewScaled(2), Entry: &position.EntryContext{Side: position.SideShort, EntryPrice: 3000}},
		},
	}
	market := dataprovider.NewEmptySnapshot()
	m := New("ETH-PERP", "ETH")
	out, err := m.Compute(snap, market)
	require.NoError(t, err)
	assert.True(t, out.TokenEquity.Decimal().IsZero(), "perp notional must not contribute to token_equity")
	assert.True(t, out.NetDelta.Decimal().Equal(decimal.NewFromFloat(-2)), "short perp contributes negative net_delta")
}
