package strategy

import (
	"time"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/pnl"
	"github.com/sawpanic/basisengine/internal/position"
	"github.com/sawpanic/basisengine/internal/risk"
)

// DecisionContext carries every read-only input a Decider may use.
// Strategy is not allowed to mutate any field or call venues directly.
type DecisionContext struct {
	Timestamp time.Time
	Positions position.Snapshot
	Exposure  exposure.Snapshot
	Risk      risk.Assessment
	PnL       pnl.Snapshot
	Market    dataprovider.Snapshot
	Config    config.ModeConfig

	// MLSignal is only populated for ModeMLDirectional ticks; nil otherwise.
	MLSignal *MLSignal
}

// MLSignal is an external directional signal consumed by the ML
// directional mode; confidence is in [0,1] and sign gives direction.
type MLSignal struct {
	Confidence float64
	Sign       int // +1 long, -1 short, 0 flat
}

// Decider is the per-mode decision module contract: given the current
// tick's monitor outputs, return zero or more orders, to be executed
// sequentially in the returned order.
type Decider interface {
	Decide(ctx DecisionContext) ([]Order, error)
}
