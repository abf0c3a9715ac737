package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/money"
	"github.com/sawpanic/basisengine/internal/position"
)

func basisCfg() config.ModeConfig {
	return config.ModeConfig{
		Asset: "BTC",
		HedgeVenues: []config.HedgeVenue{
			{Venue: "binance", Fraction: 0.8},
			{Venue: "bybit", Fraction: 0.1},
			{Venue: "okx", Fraction: 0.1},
		},
		PositionDeviationThreshold: 0.02,
	}
}

// TestBasisDecider_RebalanceToTarget_EmitsOrdersAcrossAllHedgeVenues covers
// scenario S2's venue distribution: 80% Binance, 10% Bybit, 10% OKX, each
// receiving both a spot and a perp-hedge order sized to its fraction.
func TestBasisDecider_RebalanceToTarget_EmitsOrdersAcrossAllHedgeVenues(t *testing.T) {
	d := NewBasisDecider(basisCfg())
	ctx := DecisionContext{
		Exposure: exposure.Snapshot{TokenEquity: money.NewReference(100_000), ByKey: map[string]exposure.Quadruple{}},
		Config:   d.Cfg,
	}

	orders := d.RebalanceToTarget(ctx)

	venues := map[string]int{}
	for _, o := range orders {
		venues[o.Venue]++
	}
	require.Len(t, venues, 3)
	assert.Equal(t, 2, venues["binance"])
	assert.Equal(t, 2, venues["bybit"])
	assert.Equal(t, 2, venues["okx"])

	fractions := map[string]float64{"binance": 0.8, "bybit": 0.1, "okx": 0.1}
	for _, o := range orders {
		want := decimal.NewFromFloat(100_000 * fractions[o.Venue])
		assert.True(t, o.Amount.Equal(want), "venue %s amount %s want %s", o.Venue, o.Amount, want)
	}
}

// TestBasisDecider_RebalanceOnDeposit_ScalesEveryVenueUp covers S2's
// deposit case: equity grows from 100,000 to 120,000 (1.2x) while
// existing positions are still sized to the old target, so every venue's
// spot and perp legs must scale up, not just one.
func TestBasisDecider_RebalanceOnDeposit_ScalesEveryVenueUp(t *testing.T) {
	d := NewBasisDecider(basisCfg())

	byKey := map[string]exposure.Quadruple{}
	for _, hv := range d.Cfg.HedgeVenues {
		old := decimal.NewFromFloat(100_000 * hv.Fraction)
		spotKey := position.NewKey(position.Venue(hv.Venue), position.TypeSpot, "BTC")
		perpKey := position.NewKey(position.Venue(hv.Venue), position.TypePerp, "BTC-PERP")
		byKey[spotKey.String()] = exposure.Quadruple{Underlying: money.UnderlyingFromDecimal(old)}
		byKey[perpKey.String()] = exposure.Quadruple{ReferenceAsset: money.ReferenceFromDecimal(old)}
	}

	ctx := DecisionContext{
		Exposure: exposure.Snapshot{TokenEquity: money.NewReference(120_000), ByKey: byKey},
		Config:   d.Cfg,
	}

	orders := d.RebalanceToTarget(ctx)
	venues := map[string]int{}
	for _, o := range orders {
		venues[o.Venue]++
		wantSide := "buy"
		if o.ActionType == ActionPerpOpen {
			wantSide = "sell"
		}
		assert.Equal(t, wantSide, o.Side)
	}
	assert.Equal(t, 2, venues["binance"])
	assert.Equal(t, 2, venues["bybit"])
	assert.Equal(t, 2, venues["okx"])
}
