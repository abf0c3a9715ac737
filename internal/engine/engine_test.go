package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/basisengine/internal/clock"
	"github.com/sawpanic/basisengine/internal/config"
	"github.com/sawpanic/basisengine/internal/dataprovider"
	"github.com/sawpanic/basisengine/internal/eventlog"
	"github.com/sawpanic/basisengine/internal/execution"
	"github.com/sawpanic/basisengine/internal/exposure"
	"github.com/sawpanic/basisengine/internal/pnl"
	"github.com/sawpanic/basisengine/internal/position"
	"github.com/sawpanic/basisengine/internal/reconcile"
	"github.com/sawpanic/basisengine/internal/risk"
	"github.com/sawpanic/basisengine/internal/strategy"
	"github.com/sawpanic/basisengine/internal/venue"
)

type fixedProvider struct {
	snap dataprovider.Snapshot
}

func (p fixedProvider) GetData(ctx context.Context, at time.Time) (dataprovider.Snapshot, error) {
	return p.snap, nil
}

type discardSink struct{}

func (discardSink) Emit(eventlog.Event) {}
func (discardSink) Close() error        { return nil }

func pureLendingSnapshot() dataprovider.Snapshot {
	snap := dataprovider.NewEmptySnapshot()
	snap.PricesUSD["USDT"] = decimal.NewFromInt(1)
	snap.PricesReference["USDT"] = decimal.NewFromInt(1)
	snap.Indices[dataprovider.ProtocolToken{Protocol: "aave_v3", Token: "aUSDT"}] = dataprovider.Index{
		LiquidityIndex: decimal.NewFromInt(1),
		BorrowIndex:    decimal.NewFromInt(1),
	}
	snap.RiskParams[dataprovider.ProtocolAsset{Protocol: "aave_v3", Asset: "USDT"}] = dataprovider.RiskParams{
		LiquidationThreshold: decimal.NewFromFloat(0.8),
		LiquidationBonus:     decimal.NewFromFloat(0.05),
		LTVCap:                decimal.NewFromFloat(0.75),
	}
	return snap
}

func newTestEngine(t *testing.T, cfg config.ModeConfig, decider strategy.Decider, store *position.Store, v venue.Interface, market dataprovider.Snapshot) *Engine {
	t.Helper()
	runID := "run-" + uuid.NewString()
	sink := discardSink{}
	expMon := exposure.New(cfg.Asset, cfg.Asset)
	riskMon := risk.New(risk.Thresholds{
		HealthFactorCritical: decimal.NewFromFloat(cfg.RiskThresholds.HealthFactorCritical),
		MarginRatioCritical:  decimal.NewFromFloat(cfg.RiskThresholds.MarginRatioCritical),
		DeltaDriftCritical:   decimal.NewFromFloat(cfg.RiskThresholds.DeltaDriftCritical),
		WarningFraction:      decimal.NewFromFloat(cfg.RiskThresholds.Warning()),
	})
	pnlMon := pnl.New(cfg.Asset, cfg.Asset)
	exec := execution.New(store, v, reconcile.DefaultToleranceTable(nil, nil), sink, runID,
		execution.Config{MaxRetries: 3, BaseRetryDelay: time.Millisecond, TightLoopTimeout: time.Second}, zerolog.Nop())

	e := New(runID, clock.NewBacktest(time.Now(), time.Now(), time.Hour), fixedProvider{snap: market},
		store, expMon, riskMon, pnlMon, decider, exec, sink, cfg, nil, zerolog.Nop())
	return e
}

func TestTick_PureLendingSuppliesGapToTarget(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModePureLending
	cfg.ShareClass = config.ShareClassUSDT
	cfg.Asset = "USDT"
	cfg.LendingEnabled = true
	cfg.InitialCapital = 1000

	store := position.New("run-1", zerolog.Nop(), discardSink{})
	require.NoError(t, store.Apply([]position.Delta{
		{Key: position.NewKey(position.VenueWallet, position.TypeBaseToken, "USDT"), SignedAmount: decimal.NewFromInt(1000)},
	}, "seed", time.Now()))

	decider := strategy.NewPureLendingDecider(cfg)
	v := venue.NewBacktest(venue.DefaultBacktestConfig())
	market := pureLendingSnapshot()
	e := newTestEngine(t, cfg, decider, store, v, market)

	posSnap, expSnap, riskAssessment, pnlSnap, err := e.computeMonitors(market, time.Now(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, riskAssessment.OverallStatus)
	_ = pnlSnap

	orders, err := decider.Decide(strategy.DecisionContext{
		Timestamp: time.Now(),
		Positions: posSnap,
		Exposure:  expSnap,
		Risk:      riskAssessment,
		Market:    market,
		Config:    cfg,
	})
	require.NoError(t, err)
	require.NotEmpty(t, orders)
	assert.Equal(t, strategy.ActionSupply, orders[0].ActionType)
}

func TestTick_ExecuteAppliesOrdersThroughBacktestVenue(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModePureLending
	cfg.ShareClass = config.ShareClassUSDT
	cfg.Asset = "USDT"
	cfg.LendingEnabled = true
	cfg.InitialCapital = 1000

	store := position.New("run-2", zerolog.Nop(), discardSink{})
	require.NoError(t, store.Apply([]position.Delta{
		{Key: position.NewKey(position.VenueWallet, position.TypeBaseToken, "USDT"), SignedAmount: decimal.NewFromInt(1000)},
	}, "seed", time.Now()))

	decider := strategy.NewPureLendingDecider(cfg)
	v := venue.NewBacktest(venue.DefaultBacktestConfig())
	market := pureLendingSnapshot()
	e := newTestEngine(t, cfg, decider, store, v, market)

	err := e.tick(context.Background(), time.Now())
	require.NoError(t, err)

	aKey := position.NewKey(position.VenueAaveV3, position.TypeAToken, "aUSDT")
	assert.True(t, store.Get(aKey).ScaledAmount.Decimal().GreaterThan(decimal.Zero))
}

// TestRun_ReconciliationTimeoutIsRunFatal exercises the escalation path: a
// venue that always underfills relative to the expected delta never
// reconciles, exhausts the retry budget, and the resulting
// ReconciliationTimeout must stop the run loop rather than continue to
// the next tick.
func TestRun_ReconciliationTimeoutIsRunFatal(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModePureLending
	cfg.ShareClass = config.ShareClassUSDT
	cfg.Asset = "USDT"
	cfg.LendingEnabled = true
	cfg.InitialCapital = 1000

	store := position.New("run-3", zerolog.Nop(), discardSink{})
	require.NoError(t, store.Apply([]position.Delta{
		{Key: position.NewKey(position.VenueWallet, position.TypeBaseToken, "USDT"), SignedAmount: decimal.NewFromInt(1000)},
	}, "seed", time.Now()))

	decider := strategy.NewPureLendingDecider(cfg)
	v := underfillingVenue{}
	e := newTestEngine(t, cfg, decider, store, v, pureLendingSnapshot())
	e.clock = clock.NewBacktest(time.Now(), time.Now().Add(2*time.Hour), time.Hour)
	e.exec = execution.New(store, v, reconcile.DefaultToleranceTable(nil, nil), discardSink{}, "run-3",
		execution.Config{MaxRetries: 2, BaseRetryDelay: time.Millisecond, TightLoopTimeout: time.Millisecond}, zerolog.Nop())

	err := e.run(context.Background())
	assert.Error(t, err)
}

// underfillingVenue fills every order for a tenth of its expected delta,
// so reconciliation never converges within tolerance.
type underfillingVenue struct{}

func (underfillingVenue) Route(order strategy.Order, timestamp time.Time) venue.Handshake {
	h := venue.Handshake{OrderID: order.OrderID, Status: venue.StatusFilled}
	for _, d := range order.ExpectedDeltas {
		h.ActualDeltas = append(h.ActualDeltas, venue.DeltaResult{
			Key:          d.Key,
			SignedAmount: d.SignedAmount.Div(decimal.NewFromInt(10)),
		})
	}
	return h
}

func (v underfillingVenue) RouteGroup(orders []strategy.Order, timestamp time.Time) []venue.Handshake {
	out := make([]venue.Handshake, len(orders))
	for i, o := range orders {
		out[i] = v.Route(o, timestamp)
	}
	return out
}
