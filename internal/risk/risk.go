// Package risk implements the Risk Monitor: protocol health factors, CEX
// margin ratios, net-delta drift, and composite status.
package risk

import "github.com/shopspring/decimal"

// Status is the per-dimension and overall risk level. Warning fires at a
// configurable fraction (default 60%) of the Critical threshold.
type Status string

const (
	StatusSafe     Status = "safe"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	rank := map[Status]int{StatusSafe: 0, StatusWarning: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// LendingHealth is one protocol's health-factor assessment.
type LendingHealth struct {
	Protocol             string
	LTV                  decimal.Decimal
	HealthFactor         decimal.Decimal // not meaningful when HealthFactorIsInf (zero debt)
	HealthFactorIsInf    bool
	LiquidationThreshold decimal.Decimal
	BufferToLiq          decimal.Decimal
	PctPriceMoveToLiq    decimal.Decimal
	Status               Status
}

// CEXMargin is one venue's perp margin assessment.
type CEXMargin struct {
	Venue            string
	Balance          decimal.Decimal
	ExposureNotional decimal.Decimal
	MarginRatio      decimal.Decimal
	RequiredMargin   decimal.Decimal
	MaintenanceMargin decimal.Decimal
	Status           Status
}

// DeltaDrift is the share-class-aware net-delta drift assessment.
type DeltaDrift struct {
	NetDelta      decimal.Decimal
	TargetDelta   decimal.Decimal
	DriftAbsolute decimal.Decimal
	DriftFraction decimal.Decimal
	Status        Status
}

// Assessment is the composite risk output for one tick.
type Assessment struct {
	Lending       map[string]LendingHealth
	CEX           map[string]CEXMargin
	DeltaDrift    DeltaDrift
	OverallStatus Status
}

// Thresholds configures the Critical level per dimension; Warning is
// derived from WarningFraction.
type Thresholds struct {
	HealthFactorCritical decimal.Decimal // HF below this is Critical
	MarginRatioCritical  decimal.Decimal // margin ratio below this is Critical
	DeltaDriftCritical   decimal.Decimal // drift_fraction above this is Critical
	WarningFraction      decimal.Decimal
}

func statusForLowerBound(value, critical, warningFraction decimal.Decimal) Status {
	warningBound := critical.Div(warningFraction)
	switch {
	case value.LessThan(critical):
		return StatusCritical
	case value.LessThan(warningBound):
		return StatusWarning
	default:
		return StatusSafe
	}
}

func statusForUpperBound(value, critical, warningFraction decimal.Decimal) Status {
	warningBound := critical.Mul(warningFraction)
	switch {
	case value.GreaterThan(critical):
		return StatusCritical
	case value.GreaterThan(warningBound):
		return StatusWarning
	default:
		return StatusSafe
	}
}
