package position

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/money"
)

// Side is the direction of a CEX perp position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// EntryContext carries the perp-specific fields a Position needs beyond
// its scaled amount: side and entry price.
type EntryContext struct {
	Side       Side
	EntryPrice float64
}

// Position is the authoritative record for one PositionKey.
// ScaledAmount changes only via applied execution deltas, never by
// market re-pricing.
type Position struct {
	Key          Key
	ScaledAmount money.ScaledAmount
	Entry        *EntryContext
}

// Delta is a signed change to apply to one PositionKey's scaled amount.
type Delta struct {
	Key          Key
	SignedAmount decimal.Decimal
}

// Snapshot is an immutable, per-tick copy of the full position map handed
// to downstream consumers.
type Snapshot struct {
	Timestamp time.Time
	Positions map[Key]Position
}

// Get returns the position for key, or a zero-valued position if absent.
// Positions are retained as zero entries rather than deleted, so callers
// never need a second existence check.
func (s Snapshot) Get(key Key) Position {
	if p, ok := s.Positions[key]; ok {
		return p
	}
	return Position{Key: key, ScaledAmount: money.NewScaled(0)}
}
