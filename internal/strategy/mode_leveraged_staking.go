package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/position"
)

// LeveragedStakingDecider builds a looped LST position: stake, supply the
// LST as collateral, borrow the underlying back out, and restake, in one
// flash-loan-funded atomic group rather than many sequential loop
// iterations, sized by leverage target_ltv/(1-target_ltv).
type LeveragedStakingDecider struct {
	Base
	Protocol     string
	StakingVenue position.Venue
}

func NewLeveragedStakingDecider(cfg config.ModeConfig) *LeveragedStakingDecider {
	venue := position.VenueLido
	if cfg.LSTType == "weETH" {
		venue = position.VenueEtherFi
	}
	return &LeveragedStakingDecider{Base: Base{Cfg: cfg}, Protocol: "aave_v3", StakingVenue: venue}
}

func (d *LeveragedStakingDecider) Decide(ctx DecisionContext) ([]Order, error) {
	return Evaluate(ctx, d), nil
}

func (d *LeveragedStakingDecider) currentCollateralU(ctx DecisionContext) decimal.Decimal {
	key := position.NewKey(position.VenueAaveV3, position.TypeAToken, "a"+d.Cfg.LSTType)
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.Underlying.Decimal()
	}
	return decimal.Zero
}

func (d *LeveragedStakingDecider) currentDebtU(ctx DecisionContext) decimal.Decimal {
	return debtUnderlyingFor(ctx, d.Protocol)
}

func (d *LeveragedStakingDecider) currentEquityU(ctx DecisionContext) decimal.Decimal {
	return d.currentCollateralU(ctx).Sub(d.currentDebtU(ctx))
}

func (d *LeveragedStakingDecider) EquityDeviationExceedsThreshold(ctx DecisionContext) bool {
	target := ctx.Exposure.TokenEquity.Decimal()
	current := d.currentEquityU(ctx)
	return deviationExceeds(current, target, decimal.NewFromFloat(d.Cfg.PositionDeviationThreshold))
}

// RebalanceToTarget closes the gap between the current looped-equity and
// the target by flash-borrowing underlying to fund one
// stake-supply-borrow-repay cycle: supplied = gap x leverage and
// borrowed = supplied - gap, with leverage = target_ltv/(1-target_ltv).
// The resulting LTV is (leverage-1)/leverage, e.g. 80/90 for a
// target_ltv of 0.9, not target_ltv itself.
// All five legs share one AtomicGroupID: the venue interface must apply
// them as a single transaction or not at all.
func (d *LeveragedStakingDecider) RebalanceToTarget(ctx DecisionContext) []Order {
	target := ctx.Exposure.TokenEquity.Decimal()
	gap := target.Sub(d.currentEquityU(ctx))
	if gap.IsZero() {
		return nil
	}
	ltv := decimal.NewFromFloat(d.Cfg.TargetLTV)
	oneMinusLTV := decimal.NewFromInt(1).Sub(ltv)

	if gap.Sign() < 0 || oneMinusLTV.Sign() <= 0 {
		return d.unwind(gap.Abs())
	}

	leverage := ltv.Div(oneMinusLTV)
	deltaC := gap.Mul(leverage)
	deltaD := deltaC.Sub(gap)
	groupID := newGroupID()
	lstSymbol := "a" + d.Cfg.LSTType

	return []Order{
		{OrderID: newOrderID(), Venue: d.Protocol, Instrument: d.Cfg.Asset, ActionType: ActionFlashBorrow, Amount: deltaD, AtomicGroupID: groupID},
		{OrderID: newOrderID(), Venue: string(d.StakingVenue), Instrument: d.Cfg.LSTType, ActionType: ActionStake, Amount: deltaC, AtomicGroupID: groupID},
		{OrderID: newOrderID(), Venue: d.Protocol, Instrument: d.Cfg.LSTType, ActionType: ActionSupply, Amount: deltaC, AtomicGroupID: groupID,
			ExpectedDeltas: []DeltaSpec{{Key: d.Protocol + ":aToken:" + lstSymbol, SignedAmount: deltaC}}},
		{OrderID: newOrderID(), Venue: d.Protocol, Instrument: d.Cfg.Asset, ActionType: ActionBorrow, Amount: deltaD, AtomicGroupID: groupID,
			ExpectedDeltas: []DeltaSpec{{Key: d.Protocol + ":variableDebt:" + d.Cfg.Asset, SignedAmount: deltaD}}},
		{OrderID: newOrderID(), Venue: d.Protocol, Instrument: d.Cfg.Asset, ActionType: ActionFlashRepay, Amount: deltaD, AtomicGroupID: groupID},
	}
}

// unwind reverses the loop by an equity amount: withdraw collateral,
// unstake, repay debt, all within one atomic group so the health factor
// never transits an intermediate, under-collateralized state.
func (d *LeveragedStakingDecider) unwind(equityAmount decimal.Decimal) []Order {
	ltv := decimal.NewFromFloat(d.Cfg.TargetLTV)
	oneMinusLTV := decimal.NewFromInt(1).Sub(ltv)
	if oneMinusLTV.Sign() <= 0 {
		return nil
	}
	leverage := ltv.Div(oneMinusLTV)
	deltaC := equityAmount.Mul(leverage)
	deltaD := deltaC.Sub(equityAmount)
	groupID := newGroupID()

	return []Order{
		{OrderID: newOrderID(), Venue: d.Protocol, Instrument: d.Cfg.LSTType, ActionType: ActionWithdraw, Amount: deltaC, AtomicGroupID: groupID},
		{OrderID: newOrderID(), Venue: string(d.StakingVenue), Instrument: d.Cfg.LSTType, ActionType: ActionUnstake, Amount: deltaC, AtomicGroupID: groupID},
		{OrderID: newOrderID(), Venue: d.Protocol, Instrument: d.Cfg.Asset, ActionType: ActionRepay, Amount: deltaD, AtomicGroupID: groupID},
	}
}
