package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/config"
)

// PureLendingDecider supplies the entire tracked equity to a single
// lending protocol and never rebalances again unless equity itself
// deviates from what is currently supplied.
type PureLendingDecider struct {
	Base
	Protocol string
}

func NewPureLendingDecider(cfg config.ModeConfig) *PureLendingDecider {
	return &PureLendingDecider{Base: Base{Cfg: cfg}, Protocol: "aave_v3"}
}

func (d *PureLendingDecider) Decide(ctx DecisionContext) ([]Order, error) {
	return Evaluate(ctx, d), nil
}

func (d *PureLendingDecider) currentSupplied(ctx DecisionContext) decimal.Decimal {
	total := decimal.Zero
	for key := range ctx.Positions.Positions {
		if string(key.Venue) != d.Protocol || key.IsDebt() {
			continue
		}
		if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
			total = total.Add(q.Underlying.Decimal())
		}
	}
	return total
}

func (d *PureLendingDecider) EquityDeviationExceedsThreshold(ctx DecisionContext) bool {
	target := ctx.Exposure.TokenEquity.Decimal()
	current := d.currentSupplied(ctx)
	return deviationExceeds(current, target, decimal.NewFromFloat(d.Cfg.PositionDeviationThreshold))
}

func (d *PureLendingDecider) RebalanceToTarget(ctx DecisionContext) []Order {
	target := ctx.Exposure.TokenEquity.Decimal()
	current := d.currentSupplied(ctx)
	gap := target.Sub(current)
	if gap.IsZero() {
		return nil
	}
	if gap.Sign() > 0 {
		return []Order{{
			OrderID:    newOrderID(),
			Venue:      d.Protocol,
			Instrument: d.Cfg.Asset,
			ActionType: ActionSupply,
			Amount:     gap,
			ExpectedDeltas: []DeltaSpec{
				{Key: d.Protocol + ":aToken:a" + d.Cfg.Asset, SignedAmount: gap},
			},
		}}
	}
	withdrawAmt := gap.Abs()
	return []Order{{
		OrderID:    newOrderID(),
		Venue:      d.Protocol,
		Instrument: d.Cfg.Asset,
		ActionType: ActionWithdraw,
		Amount:     withdrawAmt,
		ExpectedDeltas: []DeltaSpec{
			{Key: d.Protocol + ":aToken:a" + d.Cfg.Asset, SignedAmount: withdrawAmt.Neg()},
		},
	}}
}
