// Package reconcile implements the Position Update Handler's
// check(expected, actual, tolerance) contract: per-key comparison of
// predicted versus realized deltas, a key missing on either side treated
// as zero, success iff every key is within its tolerance.
package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the per-key-type comparison band: a discrepancy is within
// tolerance if it is within the absolute epsilon OR the relative
// fraction of the expected magnitude, whichever is looser.
type Tolerance struct {
	Absolute decimal.Decimal
	Relative decimal.Decimal
}

// within reports whether observed is close enough to expected.
func (t Tolerance) within(expected, observed decimal.Decimal) bool {
	diff := observed.Sub(expected).Abs()
	if diff.LessThanOrEqual(t.Absolute) {
		return true
	}
	bound := expected.Abs().Mul(t.Relative)
	return diff.LessThanOrEqual(bound)
}

// Discrepancy is one key whose expected and observed deltas diverged
// beyond tolerance.
type Discrepancy struct {
	Key      string
	Expected decimal.Decimal
	Observed decimal.Decimal
}

// Result is the reconciler's verdict for one order's expected-vs-actual
// delta comparison.
type Result struct {
	Success       bool
	Discrepancies []Discrepancy
	ToleranceUsed map[string]Tolerance
}

// KeyDelta pairs a PositionKey's string form with a signed amount; used
// for both the expected and actual sides so this package need not import
// position or strategy.
type KeyDelta struct {
	Key    string
	Amount decimal.Decimal
}

// ToleranceFor resolves the tolerance to use for one key; callers
// typically close over a per-position-type table (e.g. tighter bands for
// debt positions than for staked LSTs), and Check calls it once for each
// key it compares.
type ToleranceFor func(key string) Tolerance

// Check compares expected against actual per key, treating a key absent
// from either list as zero on that side.
func Check(expected, actual []KeyDelta, toleranceFor ToleranceFor) Result {
	byKey := make(map[string]struct{ expected, observed decimal.Decimal })
	for _, d := range expected {
		v := byKey[d.Key]
		v.expected = v.expected.Add(d.Amount)
		byKey[d.Key] = v
	}
	for _, d := range actual {
		v := byKey[d.Key]
		v.observed = v.observed.Add(d.Amount)
		byKey[d.Key] = v
	}

	result := Result{Success: true, ToleranceUsed: make(map[string]Tolerance)}
	for key, v := range byKey {
		tol := toleranceFor(key)
		result.ToleranceUsed[key] = tol
		if !tol.within(v.expected, v.observed) {
			result.Success = false
			result.Discrepancies = append(result.Discrepancies, Discrepancy{
				Key: key, Expected: v.expected, Observed: v.observed,
			})
		}
	}
	return result
}

// DefaultToleranceTable returns the standard per-position-type bands:
// debt positions use a tighter relative tolerance than staked LSTs,
// since debt tokens reprice via a single index while LST exchange rates
// carry more noise between oracle updates.
func DefaultToleranceTable(debtKeys, stakedKeys map[string]bool) ToleranceFor {
	debtTol := Tolerance{Absolute: decimal.NewFromFloat(1e-9), Relative: decimal.NewFromFloat(1e-6)}
	stakedTol := Tolerance{Absolute: decimal.NewFromFloat(1e-8), Relative: decimal.NewFromFloat(1e-4)}
	defaultTol := Tolerance{Absolute: decimal.NewFromFloat(1e-9), Relative: decimal.NewFromFloat(1e-5)}

	return func(key string) Tolerance {
		if debtKeys[key] {
			return debtTol
		}
		if stakedKeys[key] {
			return stakedTol
		}
		// Keys in neither set fall back to the position type encoded in
		// the key's "venue:type:symbol" form.
		if parts := strings.SplitN(key, ":", 3); len(parts) == 3 {
			switch parts[1] {
			case "variableDebt":
				return debtTol
			case "staked":
				return stakedTol
			}
		}
		return defaultTol
	}
}
