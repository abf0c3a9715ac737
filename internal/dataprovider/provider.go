package dataprovider

import (
	"context"
	"time"
)

// DataCategory names one of the load-on-demand data families a mode may
// declare in its data requirements.
type DataCategory string

const (
	CategoryPrices         DataCategory = "prices"
	CategoryFunding        DataCategory = "funding"
	CategoryLendingRates   DataCategory = "lending_rates"
	CategoryIndices        DataCategory = "indices"
	CategoryOracles        DataCategory = "oracles"
	CategoryRiskParams     DataCategory = "risk_params"
	CategoryStakingRewards DataCategory = "staking_rewards"
)

// Provider is the Clock & Data Provider collaborator interface. Data for
// timestamp t must use only information observable at or before t; a
// missing required key at t fails the tick with errs.DataMissing; repeated
// requests for the same timestamp return identical snapshots.
type Provider interface {
	GetData(ctx context.Context, at time.Time) (Snapshot, error)
}

// CategorySeries is one data category's full observed history, keyed by
// tick timestamp. Only the fields belonging to that category are expected
// to be populated on each Snapshot value.
type CategorySeries map[time.Time]Snapshot

// HistoricalSource is the raw backtest upstream a Provider loads categories
// from in bulk, once per category, on first demand. File format parsing
// and historical data retrieval are external collaborators; HistoricalSource
// is the seam at which this engine hands off to them.
type HistoricalSource interface {
	LoadCategory(ctx context.Context, category DataCategory) (CategorySeries, error)
}

// LiveSource is the raw live upstream a Provider polls for the current
// tick's snapshot. Venue API clients and on-chain RPC clients are external
// collaborators.
type LiveSource interface {
	Poll(ctx context.Context, categories []DataCategory, at time.Time) (Snapshot, error)
}
