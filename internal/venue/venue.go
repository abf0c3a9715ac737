// Package venue implements the venue interface collaborator contract:
// route a single order (or an atomic group of orders sharing one
// atomic_group_id) and return an execution handshake carrying actual
// deltas and fee information.
package venue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/strategy"
)

type HandshakeStatus string

const (
	StatusFilled  HandshakeStatus = "filled"
	StatusPartial HandshakeStatus = "partial"
	StatusFailed  HandshakeStatus = "failed"
)

// DeltaResult is one realized PositionKey change, keyed by its string
// form so it matches exposure.Snapshot.ByKey without importing position
// into this package.
type DeltaResult struct {
	Key          string
	SignedAmount decimal.Decimal
}

// Fee is one venue-reported execution cost.
type Fee struct {
	Currency string
	Amount   decimal.Decimal
}

// Handshake is the venue interface's sole return type.
type Handshake struct {
	OrderID      string
	Status       HandshakeStatus
	ActualDeltas []DeltaResult
	Fee          Fee
	FillPrice    *decimal.Decimal
	DurationMS   int64
	Simulated    bool
}

// Interface is the collaborator contract every backtest and live venue
// implementation satisfies. Orders sharing a non-empty AtomicGroupID must
// be routed together via RouteGroup. Backtest.RouteGroup reports either
// all legs filled or all failed. Live.RouteGroup stops at the first leg
// that does not fill and reports it and every later leg failed; legs
// routed before it keep their filled handshakes.
type Interface interface {
	Route(order strategy.Order, timestamp time.Time) Handshake
	RouteGroup(orders []strategy.Order, timestamp time.Time) []Handshake
}
