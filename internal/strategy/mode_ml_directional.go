package strategy

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/position"
)

// priceWindow is the number of trailing ticks used to estimate realized
// volatility for stop-loss/take-profit sizing.
const priceWindow = 30

// MLDirectionalDecider follows an external directional signal on a single
// perp instrument, sizing the position to full token equity in the
// signal's direction once confidence clears the threshold, and
// bracketing it with stop-loss/take-profit distances derived from the
// asset's own trailing realized volatility, clamped to a configured
// basis-point band so a quiet or runaway market can't produce a
// degenerate bracket.
type MLDirectionalDecider struct {
	Base
	Venue   string
	returns []float64
	lastPx  decimal.Decimal
}

func NewMLDirectionalDecider(cfg config.ModeConfig) *MLDirectionalDecider {
	venue := cfg.Asset
	if len(cfg.HedgeVenues) > 0 {
		venue = cfg.HedgeVenues[0].Venue
	}
	return &MLDirectionalDecider{Base: Base{Cfg: cfg}, Venue: venue}
}

func (d *MLDirectionalDecider) Decide(ctx DecisionContext) ([]Order, error) {
	d.observePrice(ctx)
	return Evaluate(ctx, d), nil
}

// observePrice appends the latest simple return (p/p_prev - 1) to the
// rolling window that
// clampedSDBPS draws its standard deviation from.
func (d *MLDirectionalDecider) observePrice(ctx DecisionContext) {
	price, ok := ctx.Market.PricesUSD[d.Cfg.Asset]
	if !ok || price.IsZero() {
		return
	}
	if !d.lastPx.IsZero() {
		ret, _ := price.Div(d.lastPx).Float64()
		d.returns = append(d.returns, ret-1.0)
		if len(d.returns) > priceWindow {
			d.returns = d.returns[len(d.returns)-priceWindow:]
		}
	}
	d.lastPx = price
}

// signalSign returns 0 (flat) when there is no signal or confidence sits
// at or below the configured threshold.
func (d *MLDirectionalDecider) signalSign(ctx DecisionContext) int {
	if ctx.MLSignal == nil || ctx.MLSignal.Confidence <= d.Cfg.MLConfig.SignalThreshold {
		return 0
	}
	return ctx.MLSignal.Sign
}

func (d *MLDirectionalDecider) currentNotional(ctx DecisionContext) decimal.Decimal {
	key := position.NewKey(position.Venue(d.Venue), position.TypePerp, d.Cfg.Asset+"-PERP")
	if q, ok := ctx.Exposure.ByKey[key.String()]; ok {
		return q.ReferenceAsset.Decimal()
	}
	return decimal.Zero
}

func (d *MLDirectionalDecider) targetNotional(ctx DecisionContext) decimal.Decimal {
	sign := d.signalSign(ctx)
	if sign == 0 {
		return decimal.Zero
	}
	return ctx.Exposure.TokenEquity.Decimal().Mul(decimal.NewFromInt(int64(sign)))
}

func (d *MLDirectionalDecider) EquityDeviationExceedsThreshold(ctx DecisionContext) bool {
	return deviationExceeds(d.currentNotional(ctx), d.targetNotional(ctx), decimal.NewFromFloat(d.Cfg.PositionDeviationThreshold))
}

// clampedSDBPS estimates per-tick realized volatility as the standard
// deviation of the trailing return window and clamps it into the
// configured floor/cap basis-point band. Fewer than two observations
// yields the floor, since no deviation can yet be estimated.
func (d *MLDirectionalDecider) clampedSDBPS() float64 {
	floor, cap := d.Cfg.MLConfig.SDFloorBPS, d.Cfg.MLConfig.SDCapBPS
	if len(d.returns) < 2 {
		return floor
	}
	sd := stat.StdDev(d.returns, nil)
	sdBPS := sd * 10000
	if sdBPS < floor {
		return floor
	}
	if sdBPS > cap {
		return cap
	}
	return sdBPS
}

func (d *MLDirectionalDecider) RebalanceToTarget(ctx DecisionContext) []Order {
	target := d.targetNotional(ctx)
	gap := target.Sub(d.currentNotional(ctx))
	if gap.IsZero() {
		return nil
	}

	side := "buy"
	if gap.Sign() < 0 {
		side = "sell"
	}
	order := Order{
		OrderID:    newOrderID(),
		Venue:      d.Venue,
		Instrument: d.Cfg.Asset + "-PERP",
		Side:       side,
		ActionType: ActionPerpOpen,
		Amount:     gap.Abs(),
	}

	if sign := d.signalSign(ctx); sign != 0 {
		if price, ok := ctx.Market.PricesUSD[d.Cfg.Asset]; ok && !price.IsZero() {
			sdFraction := decimal.NewFromFloat(d.clampedSDBPS() / 10000)
			stopDist := price.Mul(sdFraction).Mul(decimal.NewFromFloat(d.Cfg.MLConfig.StopLossSD))
			tpDist := price.Mul(sdFraction).Mul(decimal.NewFromFloat(d.Cfg.MLConfig.TakeProfitSD))
			signDelta := decimal.NewFromInt(int64(sign))
			stop := price.Sub(stopDist.Mul(signDelta))
			tp := price.Add(tpDist.Mul(signDelta))
			order.StopLoss = &stop
			order.TakeProfit = &tp
		}
	}

	return []Order{order}
}
