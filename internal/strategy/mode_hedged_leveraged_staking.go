package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/position"
)

// HedgedLeveragedStakingDecider combines the leveraged staking loop with a
// delta hedge on the looped collateral: the build-up/unwind legs are one
// atomic group exactly as in leveraged staking, and the hedge notional
// tracks the resulting collateral rather than raw equity.
type HedgedLeveragedStakingDecider struct {
	LeveragedStakingDecider
}

func NewHedgedLeveragedStakingDecider(cfg config.ModeConfig) *HedgedLeveragedStakingDecider {
	inner := NewLeveragedStakingDecider(cfg)
	return &HedgedLeveragedStakingDecider{LeveragedStakingDecider: *inner}
}

func (d *HedgedLeveragedStakingDecider) Decide(ctx DecisionContext) ([]Order, error) {
	return Evaluate(ctx, d), nil
}

func (d *HedgedLeveragedStakingDecider) currentPerpNotional(ctx DecisionContext, venue string) decimal.Decimal {
	key := position.NewKey(position.Venue(venue), position.TypePerp, d.Cfg.Asset+"-PERP")
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.ReferenceAsset.Decimal().Abs()
	}
	return decimal.Zero
}

func (d *HedgedLeveragedStakingDecider) EquityDeviationExceedsThreshold(ctx DecisionContext) bool {
	if d.LeveragedStakingDecider.EquityDeviationExceedsThreshold(ctx) {
		return true
	}
	threshold := decimal.NewFromFloat(d.Cfg.PositionDeviationThreshold)
	collateral := d.currentCollateralU(ctx)
	for _, hv := range d.Cfg.HedgeVenues {
		venueTarget := collateral.Mul(decimal.NewFromFloat(hv.Fraction))
		if deviationExceeds(d.currentPerpNotional(ctx, hv.Venue), venueTarget, threshold) {
			return true
		}
	}
	return false
}

// RebalanceToTarget orders the hedge leg and the on-chain leverage leg by
// direction: on a build-up, the on-chain collateral increase is applied
// first so the hedge is opened against the new, larger collateral amount;
// on withdrawal, the CEX hedge is closed first so the short leg never
// outlives the collateral it hedges once the on-chain unwind lands.
func (d *HedgedLeveragedStakingDecider) RebalanceToTarget(ctx DecisionContext) []Order {
	onChain := d.LeveragedStakingDecider.RebalanceToTarget(ctx)
	unwinding := ctx.Exposure.TokenEquity.Decimal().Sub(d.currentEquityU(ctx)).Sign() < 0

	var hedge []Order
	collateral := d.currentCollateralU(ctx)
	for _, o := range onChain {
		switch o.ActionType {
		case ActionSupply:
			collateral = collateral.Add(o.Amount)
		case ActionWithdraw:
			collateral = collateral.Sub(o.Amount)
		}
	}
	for _, hv := range d.Cfg.HedgeVenues {
		venueTarget := collateral.Mul(decimal.NewFromFloat(hv.Fraction))
		perpGap := venueTarget.Sub(d.currentPerpNotional(ctx, hv.Venue))
		if perpGap.IsZero() {
			continue
		}
		side := "sell"
		if perpGap.Sign() < 0 {
			side = "buy"
		}
		hedge = append(hedge, Order{
			OrderID:    newOrderID(),
			Venue:      hv.Venue,
			Instrument: d.Cfg.Asset + "-PERP",
			Side:       side,
			ActionType: ActionPerpOpen,
			Amount:     perpGap.Abs(),
		})
	}

	if unwinding {
		return append(hedge, onChain...)
	}
	return append(onChain, hedge...)
}
