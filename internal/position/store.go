package position

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/basisengine/internal/errs"
	"github.com/sawpanic/basisengine/internal/eventlog"
	"github.com/sawpanic/basisengine/internal/money"
)

// Store owns the authoritative map of venue-keyed positions. It is the
// only mutable shared state across a tick; it is mutated only by the
// Execution Manager via Apply, and read by monitors only through
// Snapshot's value copies.
type Store struct {
	mu       sync.RWMutex
	log      zerolog.Logger
	sink     eventlog.Sink
	runID    string
	positions map[Key]Position
}

// New constructs a fresh, empty Store. Every run constructs its own Store
// instance; there is no cross-run state.
func New(runID string, log zerolog.Logger, sink eventlog.Sink) *Store {
	return &Store{
		log:       log.With().Str("component", "position.Store").Logger(),
		sink:      sink,
		runID:     runID,
		positions: make(map[Key]Position),
	}
}

// Snapshot returns a cheap, O(positions) copy of the current position map.
func (s *Store) Snapshot(at time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[Key]Position, len(s.positions))
	for k, v := range s.positions {
		cp[k] = v
	}
	return Snapshot{Timestamp: at, Positions: cp}
}

// Get returns a single position by key, zero-valued if absent.
func (s *Store) Get(key Key) Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.positions[key]; ok {
		return p
	}
	return Position{Key: key, ScaledAmount: money.NewScaled(0)}
}

// Apply applies a list of signed deltas atomically under a single tick,
// emitting a state_update event per non-zero delta. It fails only if a
// delta would violate the non-negativity invariant: non-debt position
// types may never hold a negative scaled balance.
func (s *Store) Apply(deltas []Delta, trigger string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before mutating anything, so Apply is
	// atomic: either every delta in the batch lands, or none do.
	next := make(map[Key]money.ScaledAmount, len(deltas))
	for _, d := range deltas {
		cur, ok := next[d.Key]
		if !ok {
			cur = s.currentLocked(d.Key)
		}
		updated := cur.Add(money.ScaledFromDecimal(d.SignedAmount))
		if !d.Key.IsDebt() && updated.Sign() < 0 {
			return fmt.Errorf("%w: %s would go negative (%s + %v)", errs.InvariantViolation, d.Key, cur.Decimal(), d.SignedAmount)
		}
		next[d.Key] = updated
	}

	for k, amt := range next {
		existing, ok := s.positions[k]
		if !ok {
			existing = Position{Key: k, ScaledAmount: money.NewScaled(0)}
		}
		before := existing.ScaledAmount
		existing.ScaledAmount = amt
		s.positions[k] = existing

		if before.Decimal().Equal(amt.Decimal()) {
			continue
		}
		s.sink.Emit(eventlog.Event{
			CorrelationID: s.runID,
			Timestamp:     at,
			RealTime:      time.Now(),
			Type:          eventlog.TypeStateUpdate,
			Component:     "position.Store",
			Payload: map[string]any{
				"key":     k.String(),
				"trigger": trigger,
				"before":  before.Decimal().String(),
				"after":   amt.Decimal().String(),
			},
		})
	}
	return nil
}

func (s *Store) currentLocked(key Key) money.ScaledAmount {
	if p, ok := s.positions[key]; ok {
		return p.ScaledAmount
	}
	return money.NewScaled(0)
}
