package strategy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/risk"
)

// ModeLogic is the set of archetype hooks a concrete mode implements;
// Evaluate drives them in the mandatory decision-order-of-precedence.
type ModeLogic interface {
	RiskReduce(ctx DecisionContext) []Order
	DeltaAdjust(ctx DecisionContext) []Order
	EquityDeviationExceedsThreshold(ctx DecisionContext) bool
	RebalanceToTarget(ctx DecisionContext) []Order
	DustAboveThreshold(ctx DecisionContext) bool
	SellDust(ctx DecisionContext) []Order
}

// Evaluate applies the mandatory precedence: risk_reduce on Critical
// overall status, else delta_adjust on drift beyond warning, else
// rebalance_to_target on equity deviation beyond threshold, else
// sell_dust, else no orders. Exactly one archetype fires per tick.
func Evaluate(ctx DecisionContext, logic ModeLogic) []Order {
	if ctx.Risk.OverallStatus == risk.StatusCritical {
		return logic.RiskReduce(ctx)
	}
	if ctx.Risk.DeltaDrift.Status != risk.StatusSafe {
		return logic.DeltaAdjust(ctx)
	}
	if logic.EquityDeviationExceedsThreshold(ctx) {
		return logic.RebalanceToTarget(ctx)
	}
	if logic.DustAboveThreshold(ctx) {
		return logic.SellDust(ctx)
	}
	return nil
}

// newOrderID and newGroupID are the only two id-generation call sites in
// this package, so every order and every atomic group gets a UUIDv4.
func newOrderID() string { return uuid.NewString() }
func newGroupID() string { return uuid.NewString() }

// deviationExceeds reports whether current's fractional distance from
// target is strictly greater than threshold; exactly-at-threshold does
// not trigger, per the required strict comparison.
func deviationExceeds(current, target, threshold decimal.Decimal) bool {
	if target.IsZero() {
		return !current.IsZero()
	}
	deviation := current.Sub(target).Div(target).Abs()
	return deviation.GreaterThan(threshold)
}

// Base supplies the archetypes common across modes: risk reduction,
// delta adjustment via a perp hedge, and dust sweeping. Modes that need
// different target-allocation semantics override RebalanceToTarget and
// EquityDeviationExceedsThreshold; the rest is typically inherited as-is.
type Base struct {
	Cfg config.ModeConfig
}

// RiskReduce deleverages whichever dimension is Critical: repay lending
// debt to restore the health factor's warning bound, reduce perp notional
// to restore CEX margin, or flatten delta — independent of normal
// rebalancing, and returned alone per the precedence rule.
func (b Base) RiskReduce(ctx DecisionContext) []Order {
	var orders []Order

	for protocol, lh := range ctx.Risk.Lending {
		if lh.Status != risk.StatusCritical || lh.HealthFactorIsInf {
			continue
		}
		debtU := debtUnderlyingFor(ctx, protocol)
		if debtU.Sign() <= 0 {
			continue
		}
		// Repay enough debt that the health factor climbs back to its
		// warning bound (critical / warning fraction), the lowest value the
		// Risk Monitor rates Safe, holding collateral fixed.
		warningHF := decimal.NewFromFloat(b.Cfg.RiskThresholds.HealthFactorCritical).
			Div(decimal.NewFromFloat(b.Cfg.RiskThresholds.Warning()))
		if warningHF.Sign() <= 0 {
			continue
		}
		targetLTV := lh.LiquidationThreshold.Div(warningHF)
		collateralU := debtU.Div(lh.LTV)
		targetDebtU := collateralU.Mul(targetLTV)
		repayAmount := debtU.Sub(targetDebtU)
		if repayAmount.Sign() <= 0 {
			continue
		}
		orders = append(orders, Order{
			OrderID:    newOrderID(),
			Venue:      protocol,
			Instrument: b.Cfg.Asset,
			ActionType: ActionRepay,
			Amount:     repayAmount,
		})
	}

	for venue, cm := range ctx.Risk.CEX {
		if cm.Status != risk.StatusCritical {
			continue
		}
		reduceNotional := cm.ExposureNotional.Mul(decimal.NewFromFloat(0.3))
		if reduceNotional.Sign() <= 0 {
			continue
		}
		orders = append(orders, Order{
			OrderID:    newOrderID(),
			Venue:      venue,
			Instrument: b.Cfg.Asset + "-PERP",
			ActionType: ActionPerpClose,
			Amount:     reduceNotional,
		})
	}

	if ctx.Risk.DeltaDrift.Status == risk.StatusCritical && len(orders) == 0 {
		orders = append(orders, b.hedgeOrder(ctx)...)
	}
	return orders
}

// DeltaAdjust emits a single hedge-venue perp trade sized to close the
// drift between net_delta and target_delta.
func (b Base) DeltaAdjust(ctx DecisionContext) []Order {
	return b.hedgeOrder(ctx)
}

func (b Base) hedgeOrder(ctx DecisionContext) []Order {
	drift := ctx.Risk.DeltaDrift.NetDelta.Sub(ctx.Risk.DeltaDrift.TargetDelta)
	if drift.IsZero() {
		return nil
	}
	venue := b.Cfg.Asset
	if len(b.Cfg.HedgeVenues) > 0 {
		venue = b.Cfg.HedgeVenues[0].Venue
	}
	side := "sell"
	if drift.Sign() < 0 {
		side = "buy"
	}
	return []Order{{
		OrderID:    newOrderID(),
		Venue:      venue,
		Instrument: b.Cfg.Asset + "-PERP",
		Side:       side,
		ActionType: ActionPerpOpen,
		Amount:     drift.Abs(),
	}}
}

// DustAboveThreshold and SellDust are no-ops. No mode in this package
// overrides them, so the sell_dust step of Evaluate never emits orders.
func (b Base) DustAboveThreshold(ctx DecisionContext) bool { return false }
func (b Base) SellDust(ctx DecisionContext) []Order        { return nil }

func debtUnderlyingFor(ctx DecisionContext, protocol string) decimal.Decimal {
	total := decimal.Zero
	for k := range ctx.Positions.Positions {
		if string(k.Venue) != protocol || !k.IsDebt() {
			continue
		}
		if q, ok := ctx.Exposure.ByKey[k.String()]; ok {
			total = total.Add(q.Underlying.Decimal())
		}
	}
	return total
}
