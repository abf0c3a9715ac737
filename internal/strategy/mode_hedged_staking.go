package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/position"
)

// HedgedStakingDecider stakes a configured fraction of equity into an LST
// and hedges that stake's delta with short perps split across one or more
// venues by configured fraction, so the LST's price exposure nets to zero
// while still earning staking yield.
type HedgedStakingDecider struct {
	Base
	StakingVenue position.Venue
}

func NewHedgedStakingDecider(cfg config.ModeConfig) *HedgedStakingDecider {
	venue := position.VenueLido
	if cfg.LSTType == "weETH" {
		venue = position.VenueEtherFi
	}
	return &HedgedStakingDecider{Base: Base{Cfg: cfg}, StakingVenue: venue}
}

func (d *HedgedStakingDecider) Decide(ctx DecisionContext) ([]Order, error) {
	return Evaluate(ctx, d), nil
}

func (d *HedgedStakingDecider) targetStake(ctx DecisionContext) decimal.Decimal {
	return ctx.Exposure.TokenEquity.Decimal().Mul(decimal.NewFromFloat(d.Cfg.StakeAllocation))
}

func (d *HedgedStakingDecider) currentStake(ctx DecisionContext) decimal.Decimal {
	key := position.NewKey(d.StakingVenue, position.TypeStaked, d.Cfg.LSTType)
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.Underlying.Decimal()
	}
	return decimal.Zero
}

func (d *HedgedStakingDecider) currentPerpNotional(ctx DecisionContext, venue string) decimal.Decimal {
	key := position.NewKey(position.Venue(venue), position.TypePerp, d.Cfg.Asset+"-PERP")
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.ReferenceAsset.Decimal().Abs()
	}
	return decimal.Zero
}

func (d *HedgedStakingDecider) EquityDeviationExceedsThreshold(ctx DecisionContext) bool {
	threshold := decimal.NewFromFloat(d.Cfg.PositionDeviationThreshold)
	target := d.targetStake(ctx)
	if deviationExceeds(d.currentStake(ctx), target, threshold) {
		return true
	}
	for _, hv := range d.Cfg.HedgeVenues {
		venueTarget := target.Mul(decimal.NewFromFloat(hv.Fraction))
		if deviationExceeds(d.currentPerpNotional(ctx, hv.Venue), venueTarget, threshold) {
			return true
		}
	}
	return false
}

func (d *HedgedStakingDecider) RebalanceToTarget(ctx DecisionContext) []Order {
	var orders []Order
	target := d.targetStake(ctx)

	stakeGap := target.Sub(d.currentStake(ctx))
	if !stakeGap.IsZero() {
		action := ActionStake
		if stakeGap.Sign() < 0 {
			action = ActionUnstake
		}
		orders = append(orders, Order{
			OrderID:    newOrderID(),
			Venue:      string(d.StakingVenue),
			Instrument: d.Cfg.LSTType,
			ActionType: action,
			Amount:     stakeGap.Abs(),
		})
	}

	for _, hv := range d.Cfg.HedgeVenues {
		venueTarget := target.Mul(decimal.NewFromFloat(hv.Fraction))
		perpGap := venueTarget.Sub(d.currentPerpNotional(ctx, hv.Venue))
		if perpGap.IsZero() {
			continue
		}
		side := "sell"
		if perpGap.Sign() < 0 {
			side = "buy"
		}
		orders = append(orders, Order{
			OrderID:    newOrderID(),
			Venue:      hv.Venue,
			Instrument: d.Cfg.Asset + "-PERP",
			Side:       side,
			ActionType: ActionPerpOpen,
			Amount:     perpGap.Abs(),
		})
	}
	return orders
}
