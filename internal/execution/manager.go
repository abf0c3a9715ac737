// Package execution implements the tight-loop Execution Manager: for
// each strategy-emitted order, route it, apply realized deltas, and
// reconcile expected against actual with exponential-backoff retry,
// escalating to a run-fatal system failure if reconciliation never
// converges within the tight-loop timeout.
package execution

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/basisengine/internal/errs"
	"github.com/sawpanic/basisengine/internal/eventlog"
	"github.com/sawpanic/basisengine/internal/metrics"
	"github.com/sawpanic/basisengine/internal/position"
	"github.com/sawpanic/basisengine/internal/reconcile"
	"github.com/sawpanic/basisengine/internal/strategy"
	"github.com/sawpanic/basisengine/internal/venue"
)

// Config parameterizes the tight loop's retry schedule.
type Config struct {
	MaxRetries       int
	BaseRetryDelay   time.Duration
	TightLoopTimeout time.Duration
}

// Sleeper lets tests replace time.Sleep with an instant no-op instead of
// waiting out the real exponential backoff.
type Sleeper func(time.Duration)

// Manager orchestrates the per-order tight loop. One Manager instance is
// constructed per run and shares the run's Position Store, venue
// interface, and event sink.
type Manager struct {
	log          zerolog.Logger
	store        *position.Store
	venue        venue.Interface
	toleranceFor reconcile.ToleranceFor
	sink         eventlog.Sink
	runID        string
	cfg          Config
	sleep        Sleeper
	fees         []venue.Fee
	metrics      *metrics.Registry
}

// WithMetrics attaches a metrics.Registry to record reconciliation
// attempt counts and timeout occurrences. Optional.
func (m *Manager) WithMetrics(reg *metrics.Registry) *Manager {
	m.metrics = reg
	return m
}

func New(store *position.Store, v venue.Interface, toleranceFor reconcile.ToleranceFor, sink eventlog.Sink, runID string, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		log:          log.With().Str("component", "execution.Manager").Logger(),
		store:        store,
		venue:        v,
		toleranceFor: toleranceFor,
		sink:         sink,
		runID:        runID,
		cfg:          cfg,
		sleep:        time.Sleep,
	}
}

// DrainFees returns every fee realized since the last call and clears the
// accumulator, so the P&L Monitor sees each fee exactly once per tick.
func (m *Manager) DrainFees() []venue.Fee {
	fees := m.fees
	m.fees = nil
	return fees
}

// Execute routes every order in sequence: the (i+1)-th order never
// begins routing until the i-th is reconciled or has escalated to a
// system failure, which halts the whole batch immediately.
func (m *Manager) Execute(orders []strategy.Order, timestamp time.Time) error {
	groups := groupOrders(orders)
	for _, group := range groups {
		if err := m.executeGroup(group, timestamp); err != nil {
			return err
		}
	}
	return nil
}

// groupOrders splits orders into atomic-group runs (contiguous orders
// sharing a non-empty AtomicGroupID are one group) and singleton groups
// otherwise, preserving overall order.
func groupOrders(orders []strategy.Order) [][]strategy.Order {
	var groups [][]strategy.Order
	i := 0
	for i < len(orders) {
		if orders[i].AtomicGroupID == "" {
			groups = append(groups, orders[i:i+1])
			i++
			continue
		}
		gid := orders[i].AtomicGroupID
		j := i
		for j < len(orders) && orders[j].AtomicGroupID == gid {
			j++
		}
		groups = append(groups, orders[i:j])
		i = j
	}
	return groups
}

func (m *Manager) executeGroup(group []strategy.Order, timestamp time.Time) error {
	t0 := time.Now()

	var handshakes []venue.Handshake
	if len(group) == 1 {
		handshakes = []venue.Handshake{m.venue.Route(group[0], timestamp)}
	} else {
		handshakes = m.venue.RouteGroup(group, timestamp)
	}

	for _, h := range handshakes {
		if h.Status == venue.StatusFailed {
			m.emitFailure(timestamp, h.OrderID, "venue reported failed")
			return fmt.Errorf("%w: order %s failed at venue", errs.VenueFailure, h.OrderID)
		}
		if h.Fee.Amount.Sign() != 0 {
			m.fees = append(m.fees, h.Fee)
		}
	}

	expected := expectedDeltas(group)
	actual := actualDeltas(handshakes)

	var reconciliation reconcile.Result
	attempt := 0
	for attempt < m.cfg.MaxRetries {
		if err := m.applyDeltas(actual, timestamp); err != nil {
			return err
		}
		reconciliation = reconcile.Check(expected, actual, m.toleranceFor)
		if reconciliation.Success {
			break
		}
		attempt++
		m.sleep(m.cfg.BaseRetryDelay * time.Duration(1<<uint(attempt)))
		if time.Since(t0) > m.cfg.TightLoopTimeout {
			break
		}
	}

	m.emitReconciliation(timestamp, group, reconciliation, attempt)

	if m.metrics != nil {
		outcome := "success"
		if !reconciliation.Success {
			outcome = "timeout"
		}
		m.metrics.ReconciliationAttempts.WithLabelValues(outcome).Observe(float64(attempt))
	}

	if !reconciliation.Success {
		if m.metrics != nil {
			m.metrics.ReconciliationFailures.Inc()
		}
		m.emitFailure(timestamp, group[0].OrderID, "reconciliation did not converge within tight-loop timeout")
		return fmt.Errorf("%w: group starting at order %s", errs.ReconciliationTimeout, group[0].OrderID)
	}

	m.sink.Emit(eventlog.Event{
		CorrelationID: m.runID,
		Timestamp:     timestamp,
		RealTime:      time.Now(),
		Type:          eventlog.TypeOperationExecution,
		Component:     "execution.Manager",
		Payload: map[string]any{
			"order_ids":   orderIDs(group),
			"duration_ms": time.Since(t0).Milliseconds(),
			"attempts":    attempt,
		},
	})
	return nil
}

func (m *Manager) applyDeltas(deltas []reconcile.KeyDelta, timestamp time.Time) error {
	posDeltas := make([]position.Delta, 0, len(deltas))
	for _, d := range deltas {
		key, err := position.ParseKey(d.Key)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.StrategyContract, err)
		}
		posDeltas = append(posDeltas, position.Delta{Key: key, SignedAmount: d.Amount})
	}
	return m.store.Apply(posDeltas, "execution", timestamp)
}

func (m *Manager) emitReconciliation(timestamp time.Time, group []strategy.Order, result reconcile.Result, attempts int) {
	m.sink.Emit(eventlog.Event{
		CorrelationID: m.runID,
		Timestamp:     timestamp,
		RealTime:      time.Now(),
		Type:          eventlog.TypeReconciliation,
		Component:     "execution.Manager",
		Payload: map[string]any{
			"order_ids":     orderIDs(group),
			"success":       result.Success,
			"attempts":      attempts,
			"discrepancies": len(result.Discrepancies),
		},
	})
}

func (m *Manager) emitFailure(timestamp time.Time, orderID, reason string) {
	m.log.Error().Str("order_id", orderID).Str("reason", reason).Msg("system failure")
	m.sink.Emit(eventlog.Event{
		CorrelationID: m.runID,
		Timestamp:     timestamp,
		RealTime:      time.Now(),
		Type:          eventlog.TypeSystemFailure,
		Component:     "execution.Manager",
		Payload: map[string]any{
			"order_id": orderID,
			"reason":   reason,
		},
	})
}

func expectedDeltas(group []strategy.Order) []reconcile.KeyDelta {
	var out []reconcile.KeyDelta
	for _, o := range group {
		for _, d := range o.ExpectedDeltas {
			out = append(out, reconcile.KeyDelta{Key: d.Key, Amount: d.SignedAmount})
		}
	}
	return out
}

func actualDeltas(handshakes []venue.Handshake) []reconcile.KeyDelta {
	var out []reconcile.KeyDelta
	for _, h := range handshakes {
		for _, d := range h.ActualDeltas {
			out = append(out, reconcile.KeyDelta{Key: d.Key, Amount: d.SignedAmount})
		}
	}
	return out
}

func orderIDs(group []strategy.Order) []string {
	ids := make([]string, len(group))
	for i, o := range group {
		ids[i] = o.OrderID
	}
	return ids
}
