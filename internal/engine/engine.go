// Package engine implements the Strategy Engine orchestrator: it owns
// the shared clock, constructs the monitor cascade and Execution Manager
// once at startup, and drives the per-tick full-loop sequence described
// for both backtest replay and live operation.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/clock"
	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/errs"
	"github.com/sawpanic/basisengine/internal/eventlog"
	"github.com/sawpanic/basisengine/internal/execution"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/metrics"
	"github.com/sawpanic/basisengine/internal/pnl"
	"github.com/sawpanic/basisengine/internal/position"
	"github.com/sawpanic/basisengine/internal/risk"
	"github.com/sawpanic/basisengine/internal/strategy"
)

// MLSignalSource supplies the ML directional mode's external signal for
// one tick; every other mode leaves this nil.
type MLSignalSource interface {
	Signal(ctx context.Context, at time.Time) (*strategy.MLSignal, error)
}

// Engine owns every component reference captured once at construction
// and drives the per-tick sequence: advance clock, fetch market data,
// run the monitor cascade, decide, execute, and — only if execution
// applied anything — refresh the monitor cascade once more before
// emitting the timestep event.
type Engine struct {
	log zerolog.Logger

	clock    clock.Clock
	provider dataprovider.Provider
	store    *position.Store
	exposure *exposure.Monitor
	risk     *risk.Monitor
	pnl      *pnl.Monitor
	decider  strategy.Decider
	exec     *execution.Manager
	sink     eventlog.Sink

	cfg         config.ModeConfig
	targetDelta decimal.Decimal
	mlSignals   MLSignalSource
	metrics     *metrics.Registry

	runID string

	prevPos    position.Snapshot
	prevMarket dataprovider.Snapshot
	prevExp    exposure.Snapshot
	haveTick   bool

	seq uint64
}

// New wires every collaborator reference once. No component is
// reconstructed or rebound for the lifetime of the Engine.
func New(
	runID string,
	c clock.Clock,
	provider dataprovider.Provider,
	store *position.Store,
	exp *exposure.Monitor,
	riskMon *risk.Monitor,
	pnlMon *pnl.Monitor,
	decider strategy.Decider,
	exec *execution.Manager,
	sink eventlog.Sink,
	cfg config.ModeConfig,
	mlSignals MLSignalSource,
	log zerolog.Logger,
) *Engine {
	targetDelta := decimal.Zero
	if cfg.MarketNeutral {
		targetDelta = decimal.Zero
	}
	return &Engine{
		log:         log.With().Str("component", "engine.Engine").Logger(),
		clock:       c,
		provider:    provider,
		store:       store,
		exposure:    exp,
		risk:        riskMon,
		pnl:         pnlMon,
		decider:     decider,
		exec:        exec,
		sink:        sink,
		cfg:         cfg,
		targetDelta: targetDelta,
		mlSignals:   mlSignals,
		runID:       runID,
	}
}

// WithMetrics attaches a metrics.Registry to record tick duration,
// reconciliation outcomes, and risk-dimension gauges. Optional: an Engine
// with no registry attached simply skips metric recording.
func (e *Engine) WithMetrics(m *metrics.Registry) *Engine {
	e.metrics = m
	return e
}

// RunBacktest drives the engine until the backtest clock is exhausted.
func (e *Engine) RunBacktest(ctx context.Context) error {
	return e.run(ctx)
}

// RunLive drives the engine until ctx is cancelled.
func (e *Engine) RunLive(ctx context.Context) error {
	return e.run(ctx)
}

func (e *Engine) run(ctx context.Context) error {
	for {
		t, ok := e.clock.Next(ctx)
		if !ok {
			return nil
		}
		if err := e.tick(ctx, t); err != nil {
			if errs.Classify(err) == errs.ClassRunFatal {
				return err
			}
			e.log.Error().Err(err).Time("tick", t).Msg("tick failed, continuing")
		}
	}
}

func (e *Engine) tick(ctx context.Context, t time.Time) error {
	e.seq = 0

	var timer *metrics.TickTimer
	if e.metrics != nil {
		timer = e.metrics.StartTick()
		defer timer.Stop()
	}

	market, err := e.provider.GetData(ctx, t)
	if err != nil {
		if e.metrics != nil {
			e.metrics.TickErrors.WithLabelValues("tick_fatal").Inc()
		}
		return fmt.Errorf("%w: %v", errs.DataMissing, err)
	}

	posSnap, expSnap, riskAssessment, pnlSnap, err := e.computeMonitors(market, t, nil)
	if err != nil {
		return err
	}

	var mlSignal *strategy.MLSignal
	if e.mlSignals != nil {
		mlSignal, err = e.mlSignals.Signal(ctx, t)
		if err != nil {
			return fmt.Errorf("%w: ml signal: %v", errs.DataMissing, err)
		}
	}

	orders, err := e.decider.Decide(strategy.DecisionContext{
		Timestamp: t,
		Positions: posSnap,
		Exposure:  expSnap,
		Risk:      riskAssessment,
		PnL:       pnlSnap,
		Market:    market,
		Config:    e.cfg,
		MLSignal:  mlSignal,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errs.StrategyContract, err)
	}

	applied := false
	if len(orders) > 0 {
		if err := e.exec.Execute(orders, t); err != nil {
			return err
		}
		applied = true
	}

	if applied {
		fees := e.exec.DrainFees()
		feeEvents := make([]pnl.FeeEvent, len(fees))
		for i, f := range fees {
			feeEvents[i] = pnl.FeeEvent{Currency: f.Currency, Amount: f.Amount}
		}
		posSnap, expSnap, riskAssessment, pnlSnap, err = e.computeMonitors(market, t, feeEvents)
		if err != nil {
			return err
		}
	}

	if e.metrics != nil {
		e.recordRiskMetrics(riskAssessment)
		e.metrics.TokenEquity.Set(mustFloat(expSnap.TokenEquity.Decimal()))
		for _, o := range orders {
			e.metrics.OrdersExecuted.WithLabelValues(string(o.ActionType)).Inc()
		}
	}

	e.emit(t, eventlog.TypeTimestep, "engine.Engine", map[string]any{
		"overall_risk_status": riskAssessment.OverallStatus,
		"token_equity":        expSnap.TokenEquity.Decimal().String(),
		"orders_applied":      len(orders),
	})

	e.prevPos = posSnap
	e.prevMarket = market
	e.prevExp = expSnap
	e.haveTick = true
	return nil
}

func (e *Engine) computeMonitors(market dataprovider.Snapshot, t time.Time, fees []pnl.FeeEvent) (position.Snapshot, exposure.Snapshot, risk.Assessment, pnl.Snapshot, error) {
	posSnap := e.store.Snapshot(t)

	expSnap, err := e.exposure.Compute(posSnap, market)
	if err != nil {
		return position.Snapshot{}, exposure.Snapshot{}, risk.Assessment{}, pnl.Snapshot{}, err
	}

	// A market-neutral mode targets zero net delta; any other mode takes
	// its current net delta as the target, so its delta drift reads zero.
	targetDelta := e.targetDelta
	if !e.cfg.MarketNeutral {
		targetDelta = expSnap.NetDelta.Decimal()
	}
	riskAssessment := e.risk.Compute(posSnap, expSnap, market, targetDelta)

	var pnlSnap pnl.Snapshot
	if e.haveTick {
		pnlSnap = e.pnl.Compute(e.prevPos, e.prevMarket, e.prevExp, posSnap, market, expSnap, fees)
	}

	return posSnap, expSnap, riskAssessment, pnlSnap, nil
}

func (e *Engine) recordRiskMetrics(a risk.Assessment) {
	for protocol, h := range a.Lending {
		if h.HealthFactorIsInf {
			continue
		}
		e.metrics.HealthFactor.WithLabelValues(protocol).Set(mustFloat(h.HealthFactor))
	}
	for venueName, m := range a.CEX {
		e.metrics.MarginRatio.WithLabelValues(venueName).Set(mustFloat(m.MarginRatio))
	}
	e.metrics.NetDeltaDrift.Set(mustFloat(a.DeltaDrift.DriftAbsolute))
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (e *Engine) emit(t time.Time, typ eventlog.Type, component string, payload map[string]any) {
	e.seq++
	e.sink.Emit(eventlog.Event{
		CorrelationID: e.runID,
		Timestamp:     t,
		RealTime:      time.Now(),
		Type:          typ,
		Component:     component,
		Payload:       payload,
	})
}
