package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/position"
)

// BasisDecider holds spot collateral fully hedged by short perps,
// distributed across one or more venues by configured fraction, so the
// net position stays market neutral while earning the basis spread.
type BasisDecider struct {
	Base
}

func NewBasisDecider(cfg config.ModeConfig) *BasisDecider {
	return &BasisDecider{Base: Base{Cfg: cfg}}
}

func (d *BasisDecider) Decide(ctx DecisionContext) ([]Order, error) {
	return Evaluate(ctx, d), nil
}

func (d *BasisDecider) currentSpot(ctx DecisionContext, venue string) decimal.Decimal {
	key := position.NewKey(position.Venue(venue), position.TypeSpot, d.Cfg.Asset)
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.Underlying.Decimal()
	}
	return decimal.Zero
}

func (d *BasisDecider) currentPerpNotional(ctx DecisionContext, venue string) decimal.Decimal {
	key := position.NewKey(position.Venue(venue), position.TypePerp, d.Cfg.Asset+"-PERP")
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.ReferenceAsset.Decimal().Abs()
	}
	return decimal.Zero
}

func (d *BasisDecider) EquityDeviationExceedsThreshold(ctx DecisionContext) bool {
	target := ctx.Exposure.TokenEquity.Decimal()
	threshold := decimal.NewFromFloat(d.Cfg.PositionDeviationThreshold)
	for _, hv := range d.Cfg.HedgeVenues {
		venueTarget := target.Mul(decimal.NewFromFloat(hv.Fraction))
		if deviationExceeds(d.currentSpot(ctx, hv.Venue), venueTarget, threshold) {
			return true
		}
		if deviationExceeds(d.currentPerpNotional(ctx, hv.Venue), venueTarget, threshold) {
			return true
		}
	}
	return false
}

// RebalanceToTarget sizes the spot leg and its perp hedge to the same
// target notional at each configured venue, so the net position stays
// market neutral after the trade settles.
func (d *BasisDecider) RebalanceToTarget(ctx DecisionContext) []Order {
	target := ctx.Exposure.TokenEquity.Decimal()
	var orders []Order

	for _, hv := range d.Cfg.HedgeVenues {
		venueTarget := target.Mul(decimal.NewFromFloat(hv.Fraction))

		spotGap := venueTarget.Sub(d.currentSpot(ctx, hv.Venue))
		if !spotGap.IsZero() {
			side := "buy"
			if spotGap.Sign() < 0 {
				side = "sell"
			}
			orders = append(orders, Order{
				OrderID:    newOrderID(),
				Venue:      hv.Venue,
				Instrument: d.Cfg.Asset,
				Side:       side,
				ActionType: ActionSpotTrade,
				Amount:     spotGap.Abs(),
			})
		}

		perpGap := venueTarget.Sub(d.currentPerpNotional(ctx, hv.Venue))
		if !perpGap.IsZero() {
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
	}
	return orders
}
