package risk

import "github.com/shopspring/decimal"

// LiquidationSimulation is a diagnostic: given a hypothetical collateral
// price move, recompute the health factor, and if it would fall below 1,
// compute what a liquidator could seize.
type LiquidationSimulation struct {
	Protocol          string
	PriceMovePct      decimal.Decimal
	PreHealthFactor   LendingHealth
	PostHealthFactor  LendingHealth
	WouldLiquidate    bool
	RepaidUnderlying  decimal.Decimal
	SeizedUnderlying  decimal.Decimal
}

// defaultCloseFactor is the fraction of debt a liquidator may repay in a single
// liquidation call; this engine does not model partial-vs-full close
// factor switching, so it is a fixed configuration constant.
const defaultCloseFactor = 0.5

// SimulateLiquidation recomputes a protocol's health factor under a
// hypothetical collateral price move (positive = collateral appreciates,
// negative = depreciates) and, if the post-move health factor drops below
// 1, computes the liquidator's seizable collateral.
func (m *Monitor) SimulateLiquidation(pre LendingHealth, priceMovePct float64, liquidationBonus decimal.Decimal, collateralU decimal.Decimal) LiquidationSimulation {
	move := decimal.NewFromFloat(priceMovePct / 100.0)
	movedCollateral := collateralU.Mul(decimal.NewFromInt(1).Add(move))

	debtU := decimal.Zero
	if !pre.HealthFactorIsInf && pre.HealthFactor.Sign() != 0 {
		debtU = pre.LiquidationThreshold.Mul(collateralU).Div(pre.HealthFactor)
	}

	post := computeLendingHealth(pre.Protocol, pre.LiquidationThreshold, movedCollateral, debtU, m.Thresholds)

	sim := LiquidationSimulation{
		Protocol:        pre.Protocol,
		PriceMovePct:    decimal.NewFromFloat(priceMovePct),
		PreHealthFactor: pre,
		PostHealthFactor: post,
	}

	if !post.HealthFactorIsInf && post.HealthFactor.LessThan(decimal.NewFromInt(1)) {
		sim.WouldLiquidate = true
		sim.RepaidUnderlying = debtU.Mul(decimal.NewFromFloat(defaultCloseFactor))
		sim.SeizedUnderlying = sim.RepaidUnderlying.Mul(decimal.NewFromInt(1).Add(liquidationBonus))
	}
	return sim
}
