package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/position"
)

// DirectionalStakingDecider stakes the entire tracked equity into one LST
// and carries the underlying asset's price risk unhedged.
type DirectionalStakingDecider struct {
	Base
	StakingVenue position.Venue
}

func NewDirectionalStakingDecider(cfg config.ModeConfig) *DirectionalStakingDecider {
	venue := position.VenueLido
	if cfg.LSTType == "weETH" {
		venue = position.VenueEtherFi
	}
	return &DirectionalStakingDecider{Base: Base{Cfg: cfg}, StakingVenue: venue}
}

func (d *DirectionalStakingDecider) Decide(ctx DecisionContext) ([]Order, error) {
	return Evaluate(ctx, d), nil
}

func (d *DirectionalStakingDecider) currentStaked(ctx DecisionContext) decimal.Decimal {
	key := position.NewKey(d.StakingVenue, position.TypeStaked, d.Cfg.LSTType)
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.Underlying.Decimal()
	}
	return decimal.Zero
}

func (d *DirectionalStakingDecider) EquityDeviationExceedsThreshold(ctx DecisionContext) bool {
	target := ctx.Exposure.TokenEquity.Decimal()
	current := d.currentStaked(ctx)
	return deviationExceeds(current, target, decimal.NewFromFloat(d.Cfg.PositionDeviationThreshold))
}

func (d *DirectionalStakingDecider) RebalanceToTarget(ctx DecisionContext) []Order {
	target := ctx.Exposure.TokenEquity.Decimal()
	gap := target.Sub(d.currentStaked(ctx))
	if gap.IsZero() {
		return nil
	}
	if gap.Sign() > 0 {
		return []Order{{
			OrderID:    newOrderID(),
			Venue:      string(d.StakingVenue),
			Instrument: d.Cfg.LSTType,
			ActionType: ActionStake,
			Amount:     gap,
		}}
	}
	return []Order{{
		OrderID:    newOrderID(),
		Venue:      string(d.StakingVenue),
		Instrument: d.Cfg.LSTType,
		ActionType: ActionUnstake,
		Amount:     gap.Abs(),
	}}
}
