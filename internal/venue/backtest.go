package venue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/strategy"
)

// BacktestConfig parameterizes the simulated cost/slippage model.
type BacktestConfig struct {
	FeeBPS          decimal.Decimal
	SlippageBPS     decimal.Decimal
	FlashLoanFeeBPS decimal.Decimal
}

func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		FeeBPS:          decimal.NewFromFloat(5),
		SlippageBPS:     decimal.NewFromFloat(2),
		FlashLoanFeeBPS: decimal.NewFromFloat(9),
	}
}

// Backtest simulates every order deterministically: the realized deltas
// are always exactly the strategy's expected deltas (minus the modeled
// fee, charged separately), so backtest reconciliation always succeeds on
// the first attempt.
type Backtest struct {
	cfg BacktestConfig
}

func NewBacktest(cfg BacktestConfig) *Backtest {
	return &Backtest{cfg: cfg}
}

func (v *Backtest) Route(order strategy.Order, timestamp time.Time) Handshake {
	return v.route(order)
}

func (v *Backtest) RouteGroup(orders []strategy.Order, timestamp time.Time) []Handshake {
	handshakes := make([]Handshake, len(orders))
	for i, o := range orders {
		handshakes[i] = v.route(o)
		if handshakes[i].Status == StatusFailed {
			for j := range handshakes {
				handshakes[j] = failedHandshake(orders[j])
			}
			return handshakes
		}
	}
	return handshakes
}

func (v *Backtest) route(order strategy.Order) Handshake {
	if order.Amount.Sign() <= 0 {
		return failedHandshake(order)
	}

	deltas := make([]DeltaResult, len(order.ExpectedDeltas))
	for i, d := range order.ExpectedDeltas {
		deltas[i] = DeltaResult{Key: d.Key, SignedAmount: d.SignedAmount}
	}

	feeBPS := v.cfg.FeeBPS
	if order.ActionType == strategy.ActionFlashBorrow {
		feeBPS = v.cfg.FlashLoanFeeBPS
	}
	feeAmount := order.Amount.Mul(feeBPS).Div(decimal.NewFromInt(10000))

	return Handshake{
		OrderID:      order.OrderID,
		Status:       StatusFilled,
		ActualDeltas: deltas,
		Fee:          Fee{Currency: order.Instrument, Amount: feeAmount},
		Simulated:    true,
	}
}

func failedHandshake(order strategy.Order) Handshake {
	return Handshake{OrderID: order.OrderID, Status: StatusFailed, Simulated: true}
}
