package position

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/basisengine/internal/eventlog"
)

func newTestStore() (*Store, *eventlog.MemorySink) {
	sink := eventlog.NewMemorySink()
	return New("run-1", zerolog.Nop(), sink), sink
}

func TestApply_ConservationUnderExecution(t *testing.T) {
	store, _ := newTestStore()
	key := NewKey(VenueAaveV3, TypeAToken, "aUSDT")

	err := store.Apply([]Delta{{Key: key, SignedAmount: decimal.NewFromInt(100)}}, "supply", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "100", store.Get(key).ScaledAmount.Decimal().String())

	err = store.Apply([]Delta{{Key: key, SignedAmount: decimal.NewFromInt(-40)}}, "withdraw", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "60", store.Get(key).ScaledAmount.Decimal().String())
}

func TestApply_RejectsNegativeNonDebtBalance(t *testing.T) {
	store, _ := newTestStore()
	key := NewKey(VenueAaveV3, TypeAToken, "aUSDT")

	err := store.Apply([]Delta{{Key: key, SignedAmount: decimal.NewFromInt(10)}}, "supply", time.Now())
	require.NoError(t, err)

	err = store.Apply([]Delta{{Key: key, SignedAmount: decimal.NewFromInt(-50)}}, "withdraw", time.Now())
	assert.Error(t, err)
	// Failed batch must not have partially applied.
	assert.Equal(t, "10", store.Get(key).ScaledAmount.Decimal().String())
}

func TestApply_DebtPositionAllowsPositiveOnlyGrowthDirection(t *testing.T) {
	store, _ := newTestStore()
	debt := NewKey(VenueAaveV3, TypeVariableDebt, "USDC")

	require.NoError(t, store.Apply([]Delta{{Key: debt, SignedAmount: decimal.NewFromInt(80)}}, "borrow", time.Now()))
	assert.Equal(t, "80", store.Get(debt).ScaledAmount.Decimal().String())

	require.NoError(t, store.Apply([]Delta{{Key: debt, SignedAmount: decimal.NewFromInt(-80)}}, "repay", time.Now()))
	assert.Equal(t, "0", store.Get(debt).ScaledAmount.Decimal().String())
}

func TestApply_ZeroDeltaEmitsNoEvent(t *testing.T) {
	store, sink := newTestStore()
	key := NewKey(VenueWallet, TypeBaseToken, "USDT")

	require.NoError(t, store.Apply([]Delta{{Key: key, SignedAmount: decimal.Zero}}, "noop", time.Now()))
	assert.Empty(t, sink.ByType(eventlog.TypeStateUpdate))
}

func TestApply_IdempotentUndo(t *testing.T) {
	store, _ := newTestStore()
	key := NewKey(VenueBinance, TypeSpot, "BTC")

	before := store.Snapshot(time.Now())
	deltas := []Delta{{Key: key, SignedAmount: decimal.NewFromFloat(1.5)}}
	require.NoError(t, store.Apply(deltas, "buy", time.Now()))

	undo := []Delta{{Key: key, SignedAmount: decimal.NewFromFloat(-1.5)}}
	require.NoError(t, store.Apply(undo, "sell", time.Now()))

	after := store.Snapshot(time.Now())
	assert.Equal(t, before.Get(key).ScaledAmount.Decimal().String(), after.Get(key).ScaledAmount.Decimal().String())
}

func TestSnapshot_RetainsZeroedPositions(t *testing.T) {
	store, _ := newTestStore()
	key := NewKey(VenueWallet, TypeBaseToken, "USDT")

	require.NoError(t, store.Apply([]Delta{{Key: key, SignedAmount: decimal.NewFromInt(10)}}, "deposit", time.Now()))
	require.NoError(t, store.Apply([]Delta{{Key: key, SignedAmount: decimal.NewFromInt(-10)}}, "withdraw", time.Now()))

	snap := store.Snapshot(time.Now())
	_, ok := snap.Positions[key]
	assert.True(t, ok, "zeroed position must be retained, not deleted")
}
