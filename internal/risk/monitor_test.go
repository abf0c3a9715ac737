package risk

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

func defaultThresholds() Thresholds {
	return Thresholds{
		HealthFactorCritical: decimal.NewFromFloat(1.05),
		MarginRatioCritical:  decimal.NewFromFloat(0.1),
		DeltaDriftCritical:   decimal.NewFromFloat(0.05),
		WarningFraction:      decimal.NewFromFloat(0.6),
	}
}

func TestCompute_HealthFactorFormula(t *testing.T) {
	collateral := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aWEETH")
	debt := position.NewKey(position.VenueAaveV3, position.TypeVariableDebt, "ETH")
	snap := position.Snapshot{
		Timestamp: time.Now(),
		Positions: map[position.Key]position.Position{
			collateral: {Key: collateral, ScaledAmount: money.NewScaled(10)},
			debt:       {Key: debt, ScaledAmount: money.NewScaled(6)},
		},
	}
	exp := exposure.Snapshot{
		ByKey: map[string]exposure.Quadruple{
			collateral.String(): {Underlying: money.UnderlyingFromDecimal(decimal.NewFromInt(10))},
			debt.String():       {Underlying: money.UnderlyingFromDecimal(decimal.NewFromInt(6))},
		},
		NetDelta:    money.NewReference(4),
		TokenEquity: money.NewReference(10),
	}
	market := dataprovider.NewEmptySnapshot()
	market.RiskParams[dataprovider.ProtocolAsset{Protocol: "aave_v3", Asset: "aWEETH"}] = dataprovider.RiskParams{
		LiquidationThreshold: decimal.NewFromFloat(0.8),
	}

	m := New(defaultThresholds())
	out := m.Compute(snap, exp, market, decimal.NewFromInt(4))

	lh, ok := out.Lending["aave_v3"]
	if !ok {
		t.Fatalf("expected lending health for aave_v3")
	}

	expectedHF := decimal.NewFromFloat(0.8).Mul(decimal.NewFromInt(10)).Div(decimal.NewFromInt(6))
	assert.True(t, lh.HealthFactor.Equal(expectedHF), "health_factor == lt*collateral_u/debt_u")

	if lh.HealthFactor.GreaterThan(decimal.NewFromInt(1)) {
		one := decimal.NewFromInt(1)
		expectedPct := one.Sub(one.Div(lh.HealthFactor)).Mul(decimal.NewFromInt(100))
		assert.True(t, lh.PctPriceMoveToLiq.Equal(expectedPct), "pct_price_move_to_liq == (1 - 1/hf) * 100")
	}
}

func TestCompute_ZeroDebtIsInfiniteHealthFactor(t *testing.T) {
	collateral := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aWEETH")
	snap := position.Snapshot{
		Positions: map[position.Key]position.Position{
			collateral: {Key: collateral, ScaledAmount: money.NewScaled(10)},
		},
	}
	exp := exposure.Snapshot{
		ByKey: map[string]exposure.Quadruple{
			collateral.String(): {Underlying: money.UnderlyingFromDecimal(decimal.NewFromInt(10))},
		},
		NetDelta:    money.NewReference(10),
		TokenEquity: money.NewReference(10),
	}
	market := dataprovider.NewEmptySnapshot()

	m := New(defaultThresholds())
	out := m.Compute(snap, exp, market, decimal.NewFromInt(10))

	lh := out.Lending["aave_v3"]
	assert.True(t, lh.HealthFactorIsInf, "zero debt must report health_factor as +inf sentinel")
	assert.Equal(t, StatusSafe, lh.Status)
	assert.Equal(t, StatusSafe, out.OverallStatus)
}

func TestCompute_OverallStatusIsWorstDimension(t *testing.T) {
	collateral := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aWEETH")
	debt := position.NewKey(position.VenueAaveV3, position.TypeVariableDebt, "ETH")
	snap := position.Snapshot{
		Positions: map[position.Key]position.Position{
			collateral: {Key: collateral, ScaledAmount: money.NewScaled(10)},
			debt:       {Key: debt, ScaledAmount: money.NewScaled(9)},
		},
	}
	exp := exposure.Snapshot{
		ByKey: map[string]exposure.Quadruple{
			collateral.String(): {Underlying: money.UnderlyingFromDecimal(decimal.NewFromInt(10))},
			debt.String():       {Underlying: money.UnderlyingFromDecimal(decimal.NewFromInt(9))},
		},
		NetDelta:    money.NewReference(1),
		TokenEquity: money.NewReference(10),
	}
	market := dataprovider.NewEmptySnapshot()
	market.RiskParams[dataprovider.ProtocolAsset{Protocol: "aave_v3", Asset: "aWEETH"}] = dataprovider.RiskParams{
		LiquidationThreshold: decimal.NewFromFloat(0.8),
	}

	m := New(defaultThresholds())
	out := m.Compute(snap, exp, market, decimal.NewFromInt(1))

	assert.Equal(t, StatusCritical, out.Lending["aave_v3"].Status, "HF = 0.8*10/9 < 1.05 critical bound")
	assert.Equal(t, StatusCritical, out.OverallStatus)
}

func TestSimulateLiquidation_PriceDropTriggersSeizure(t *testing.T) {
	m := New(defaultThresholds())
	pre := LendingHealth{
		Protocol:             "aave_v3",
		LiquidationThreshold: decimal.NewFromFloat(0.8),
		HealthFactor:         decimal.NewFromFloat(1.2),
	}
	collateralU := decimal.NewFromInt(100)
	bonus := decimal.NewFromFloat(0.05)

	sim := m.SimulateLiquidation(pre, -20, bonus, collateralU)

	assert.True(t, sim.WouldLiquidate, "a 20%% collateral drop from HF 1.2 should cross below 1")
	assert.True(t, sim.SeizedUnderlying.GreaterThan(sim.RepaidUnderlying), "liquidation bonus must inflate seized over repaid")
}
