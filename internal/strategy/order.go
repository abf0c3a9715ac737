package strategy

import "github.com/shopspring/decimal"

// ActionType enumerates the operations a venue interface understands.
type ActionType string

const (
	ActionSupply         ActionType = "supply"
	ActionWithdraw       ActionType = "withdraw"
	ActionBorrow         ActionType = "borrow"
	ActionRepay          ActionType = "repay"
	ActionStake          ActionType = "stake"
	ActionUnstake        ActionType = "unstake"
	ActionSpotTrade      ActionType = "spot_trade"
	ActionPerpOpen       ActionType = "perp_open"
	ActionPerpClose      ActionType = "perp_close"
	ActionWalletTransfer ActionType = "wallet_transfer"
	ActionFlashBorrow    ActionType = "flash_borrow"
	ActionFlashRepay     ActionType = "flash_repay"
)

// DeltaSpec is one PositionKey's predicted signed change from an order.
type DeltaSpec struct {
	Key          string
	SignedAmount decimal.Decimal
}

// Order is one strategy-emitted instruction for the Execution Manager.
// AtomicGroupID, when non-empty, marks this order as part of an
// all-or-nothing group that the venue interface must route as a single
// transaction.
type Order struct {
	OrderID        string
	Venue          string
	Instrument     string
	Side           string
	ActionType     ActionType
	Amount         decimal.Decimal
	LimitPrice     *decimal.Decimal
	StopLoss       *decimal.Decimal
	TakeProfit     *decimal.Decimal
	AtomicGroupID  string
	ExpectedDeltas []DeltaSpec
}
