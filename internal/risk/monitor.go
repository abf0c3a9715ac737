package risk

import (
	"github.com/shopspring/decimal"

	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/position"
)

// protocolAgg accumulates one lending protocol's aggregate underlying
// collateral and debt, plus a representative collateral asset symbol used
// to look up liquidation parameters.
type protocolAgg struct {
	collateralU      decimal.Decimal
	debtU            decimal.Decimal
	collateralAsset  string
}

type cexAgg struct {
	balanceQuote decimal.Decimal
	notionalQuote decimal.Decimal
}

// Monitor computes the composite risk assessment for one tick.
type Monitor struct {
	Thresholds Thresholds
}

func New(thresholds Thresholds) *Monitor {
	return &Monitor{Thresholds: thresholds}
}

// Compute evaluates lending health per protocol, CEX margin per venue, and
// delta drift against targetDelta, then assigns overall_status as the
// worst of all dimensions.
func (m *Monitor) Compute(snap position.Snapshot, exp exposure.Snapshot, market dataprovider.Snapshot, targetDelta decimal.Decimal) Assessment {
	protocols := map[string]*protocolAgg{}
	cex := map[string]*cexAgg{}

	for key, q := range byKeyWithPosition(snap, exp) {
		switch {
		case key.IsLendingToken():
			agg, ok := protocols[string(key.Venue)]
			if !ok {
				agg = &protocolAgg{collateralU: decimal.Zero, debtU: decimal.Zero}
				protocols[string(key.Venue)] = agg
			}
			if key.IsDebt() {
				agg.debtU = agg.debtU.Add(q.Underlying.Decimal())
			} else {
				agg.collateralU = agg.collateralU.Add(q.Underlying.Decimal())
				if agg.collateralAsset == "" {
					agg.collateralAsset = key.Symbol
				}
			}
		case key.IsPerp():
			agg, ok := cex[string(key.Venue)]
			if !ok {
				agg = &cexAgg{}
				cex[string(key.Venue)] = agg
			}
			agg.notionalQuote = agg.notionalQuote.Add(q.Quote.Decimal().Abs())
		case key.Type == position.TypeBaseToken && key.Venue != position.VenueWallet:
			agg, ok := cex[string(key.Venue)]
			if !ok {
				agg = &cexAgg{}
				cex[string(key.Venue)] = agg
			}
			agg.balanceQuote = agg.balanceQuote.Add(q.Quote.Decimal())
		}
	}

	assessment := Assessment{
		Lending:       make(map[string]LendingHealth),
		CEX:           make(map[string]CEXMargin),
		OverallStatus: StatusSafe,
	}

	for protocol, agg := range protocols {
		lt := decimal.NewFromFloat(0.8)
		if rp, ok := market.RiskParams[dataprovider.ProtocolAsset{Protocol: protocol, Asset: agg.collateralAsset}]; ok {
			lt = rp.LiquidationThreshold
		}
		lh := computeLendingHealth(protocol, lt, agg.collateralU, agg.debtU, m.Thresholds)
		assessment.Lending[protocol] = lh
		assessment.OverallStatus = worse(assessment.OverallStatus, lh.Status)
	}

	for venue, agg := range cex {
		cm := computeCEXMargin(venue, agg.balanceQuote, agg.notionalQuote, m.Thresholds)
		assessment.CEX[venue] = cm
		assessment.OverallStatus = worse(assessment.OverallStatus, cm.Status)
	}

	dd := computeDeltaDrift(exp.NetDelta.Decimal(), targetDelta, exp.TokenEquity.Decimal(), m.Thresholds)
	assessment.DeltaDrift = dd
	assessment.OverallStatus = worse(assessment.OverallStatus, dd.Status)

	return assessment
}

func computeLendingHealth(protocol string, lt, collateralU, debtU decimal.Decimal, th Thresholds) LendingHealth {
	lh := LendingHealth{Protocol: protocol, LiquidationThreshold: lt}
	if debtU.Sign() <= 0 {
		// Zero debt: health factor is +infinity, status Safe.
		lh.HealthFactorIsInf = true
		lh.Status = StatusSafe
		lh.LTV = decimal.Zero
		lh.BufferToLiq = lt
		lh.PctPriceMoveToLiq = decimal.Zero
		return lh
	}

	lh.LTV = debtU.Div(collateralU)
	lh.HealthFactor = lt.Mul(collateralU).Div(debtU)
	lh.BufferToLiq = lt.Sub(lh.LTV)

	if lh.HealthFactor.GreaterThan(decimal.NewFromInt(1)) {
		one := decimal.NewFromInt(1)
		lh.PctPriceMoveToLiq = one.Sub(one.Div(lh.HealthFactor)).Mul(decimal.NewFromInt(100))
	} else {
		lh.PctPriceMoveToLiq = decimal.Zero
	}

	lh.Status = statusForLowerBound(lh.HealthFactor, th.HealthFactorCritical, oneIfZero(th.WarningFraction))
	return lh
}

func computeCEXMargin(venue string, balance, notional decimal.Decimal, th Thresholds) CEXMargin {
	cm := CEXMargin{Venue: venue, Balance: balance, ExposureNotional: notional}
	if notional.Sign() == 0 {
		cm.Status = StatusSafe
		return cm
	}
	cm.MarginRatio = balance.Div(notional)
	cm.RequiredMargin = notional.Mul(decimal.NewFromFloat(0.1))
	cm.MaintenanceMargin = notional.Mul(decimal.NewFromFloat(0.05))

	cm.Status = statusForLowerBound(cm.MarginRatio, th.MarginRatioCritical, oneIfZero(th.WarningFraction))
	return cm
}

func computeDeltaDrift(netDelta, targetDelta, tokenEquity decimal.Decimal, th Thresholds) DeltaDrift {
	dd := DeltaDrift{NetDelta: netDelta, TargetDelta: targetDelta}
	dd.DriftAbsolute = netDelta.Sub(targetDelta).Abs()
	if tokenEquity.Sign() == 0 {
		dd.DriftFraction = decimal.Zero
		dd.Status = StatusSafe
		return dd
	}
	dd.DriftFraction = dd.DriftAbsolute.Div(tokenEquity.Abs())

	dd.Status = statusForUpperBound(dd.DriftFraction, th.DeltaDriftCritical, oneIfZero(th.WarningFraction))
	return dd
}

func oneIfZero(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.NewFromFloat(0.6)
	}
	return d
}

// keyedQuadruple pairs a position.Key with its exposure.Quadruple so the
// aggregation pass above can branch on key semantics without a second
// string-keyed lookup.
func byKeyWithPosition(snap position.Snapshot, exp exposure.Snapshot) map[position.Key]exposure.Quadruple {
	out := make(map[position.Key]exposure.Quadruple, len(snap.Positions))
	for key := range snap.Positions {
		if q, ok := exp.ByKey[key.String()]; ok {
			out[key] = q
		}
	}
	return out
}
