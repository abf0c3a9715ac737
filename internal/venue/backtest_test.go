package venue

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/basisengine/internal/strategy"
)

func TestBacktest_RouteFillsExactlyExpectedDeltas(t *testing.T) {
	v := NewBacktest(DefaultBacktestConfig())
	order := strategy.Order{
		OrderID:    "o1",
		Venue:      "aave_v3",
		Instrument: "USDT",
		ActionType: strategy.ActionSupply,
		Amount:     decimal.NewFromInt(1000),
		ExpectedDeltas: []strategy.DeltaSpec{
			{Key: "aave_v3:aToken:aUSDT", SignedAmount: decimal.NewFromInt(1000)},
		},
	}

	h := v.Route(order, time.Now())

	assert.Equal(t, StatusFilled, h.Status)
	assert.True(t, h.Simulated)
	assert.Len(t, h.ActualDeltas, 1)
	assert.True(t, h.ActualDeltas[0].SignedAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, h.Fee.Amount.GreaterThan(decimal.Zero))
}

func TestBacktest_ZeroAmountOrderFails(t *testing.T) {
	v := NewBacktest(DefaultBacktestConfig())
	h := v.Route(strategy.Order{OrderID: "o2", Amount: decimal.Zero}, time.Now())
	assert.Equal(t, StatusFailed, h.Status)
}

func TestBacktest_RouteGroupAllOrNothing(t *testing.T) {
	v := NewBacktest(DefaultBacktestConfig())
	orders := []strategy.Order{
		{OrderID: "g1", Amount: decimal.NewFromInt(100), AtomicGroupID: "grp", ExpectedDeltas: []strategy.DeltaSpec{{Key: "a", SignedAmount: decimal.NewFromInt(100)}}},
		{OrderID: "g2", Amount: decimal.Zero, AtomicGroupID: "grp"},
		{OrderID: "g3", Amount: decimal.NewFromInt(50), AtomicGroupID: "grp", ExpectedDeltas: []strategy.DeltaSpec{{Key: "c", SignedAmount: decimal.NewFromInt(50)}}},
	}

	handshakes := v.RouteGroup(orders, time.Now())

	for _, h := range handshakes {
		assert.Equal(t, StatusFailed, h.Status, "one failed leg must fail the whole atomic group")
	}
}

func TestBacktest_FlashBorrowUsesFlashLoanFee(t *testing.T) {
	v := NewBacktest(DefaultBacktestConfig())
	order := strategy.Order{
		OrderID:    "fb1",
		ActionType: strategy.ActionFlashBorrow,
		Amount:     decimal.NewFromInt(10000),
	}
	h := v.Route(order, time.Now())

	expectedFee := decimal.NewFromInt(10000).Mul(DefaultBacktestConfig().FlashLoanFeeBPS).Div(decimal.NewFromInt(10000))
	assert.True(t, h.Fee.Amount.Equal(expectedFee))
}
