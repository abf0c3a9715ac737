// Package errs implements the engine's error taxonomy as sentinel errors
// composed with fmt.Errorf("...: %w", err) wrapping, so callers use
// errors.Is to classify a failure as tick-fatal, run-fatal, or locally
// recoverable without needing a bespoke error-code switch.
package errs

import "errors"

var (
	// DataMissing: required market/protocol data absent at tick. Tick-fatal.
	DataMissing = errors.New("data missing")
	// OracleInvalid: oracle price non-positive or malformed. Tick-fatal.
	OracleInvalid = errors.New("oracle invalid")
	// IndexInvalid: liquidity/borrow index non-positive or malformed. Tick-fatal.
	IndexInvalid = errors.New("index invalid")
	// InvariantViolation: e.g. attempted negative scaled balance on a
	// non-debt position. Run-fatal.
	InvariantViolation = errors.New("invariant violation")
	// VenueFailure: routed order reported failed or timed out. Classified
	// as locally recoverable; repeated failures are not counted and never
	// escalate to run-fatal.
	VenueFailure = errors.New("venue failure")
	// ReconciliationDiscrepancy: expected vs actual deltas diverge beyond
	// tolerance. Locally recoverable until the tight-loop timeout.
	ReconciliationDiscrepancy = errors.New("reconciliation discrepancy")
	// ReconciliationTimeout: exhausted retry budget. Run-fatal.
	ReconciliationTimeout = errors.New("reconciliation timeout")
	// StrategyContract: decision module returned a malformed order. Tick-fatal.
	StrategyContract = errors.New("strategy contract violation")
	// ConfigError: mode config fails validation at construction.
	ConfigError = errors.New("config error")
	// HealthDegraded: non-fatal, surfaced by the health inspector.
	HealthDegraded = errors.New("health degraded")
)

// Class categorizes a sentinel for propagation-policy dispatch.
type Class int

const (
	ClassRecoverable Class = iota
	ClassTickFatal
	ClassRunFatal
)

// Classify returns the propagation class for a sentinel error. Errors not
// in the taxonomy are treated as tick-fatal: unrecognized failures should
// not silently continue the tick.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ReconciliationTimeout),
		errors.Is(err, InvariantViolation):
		return ClassRunFatal
	case errors.Is(err, DataMissing),
		errors.Is(err, OracleInvalid),
		errors.Is(err, IndexInvalid),
		errors.Is(err, StrategyContract),
		errors.Is(err, ConfigError):
		return ClassTickFatal
	case errors.Is(err, VenueFailure),
		errors.Is(err, ReconciliationDiscrepancy),
		errors.Is(err, HealthDegraded):
		return ClassRecoverable
	default:
		return ClassTickFatal
	}
}

// ExitCode maps a run-fatal reason to the process's small exit-code set.
type ExitCode int

const (
	ExitClean ExitCode = iota
	ExitReconciliationTimeout
	ExitVenueUnrecoverable
	ExitDataMissing
	ExitInvariantViolation
)

func ExitCodeFor(err error) ExitCode {
	switch {
	case err == nil:
		return ExitClean
	case errors.Is(err, ReconciliationTimeout):
		return ExitReconciliationTimeout
	case errors.Is(err, VenueFailure):
		return ExitVenueUnrecoverable
	case errors.Is(err, DataMissing):
		return ExitDataMissing
	case errors.Is(err, InvariantViolation):
		return ExitInvariantViolation
	default:
		return ExitInvariantViolation
	}
}
