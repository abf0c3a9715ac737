// Package dataprovider implements the data-provider collaborator
// contract: get_data(timestamp) -> Snapshot, with no-look-ahead and
// idempotent-by-timestamp guarantees.
package dataprovider

import "github.com/shopspring/decimal"

// AssetPair identifies an oracle price route, e.g. weETH/ETH.
type AssetPair struct {
	Base  string
	Quote string
}

// VenueInstrument identifies a funding-rate route.
type VenueInstrument struct {
	Venue      string
	Instrument string
}

// ProtocolAsset identifies a lending-rate or risk-parameter route.
type ProtocolAsset struct {
	Protocol string
	Asset    string
}

// ProtocolToken identifies a protocol index route.
type ProtocolToken struct {
	Protocol string
	Token    string
}

// Index holds a protocol's liquidity/borrow index pair, normalized around
// 1.0.
type Index struct {
	LiquidityIndex decimal.Decimal
	BorrowIndex    decimal.Decimal
}

// LendingRate holds a protocol asset's supply/borrow APR.
type LendingRate struct {
	SupplyRate decimal.Decimal
	BorrowRate decimal.Decimal
}

// RiskParams holds a protocol asset's liquidation configuration.
type RiskParams struct {
	LiquidationThreshold decimal.Decimal
	LiquidationBonus     decimal.Decimal
	LTVCap               decimal.Decimal
}

// Snapshot is the complete time-indexed market/protocol-data view for one
// timestamp.
type Snapshot struct {
	PricesUSD       map[string]decimal.Decimal
	PricesReference map[string]decimal.Decimal
	Funding         map[VenueInstrument]decimal.Decimal
	LendingRates    map[ProtocolAsset]LendingRate
	Indices         map[ProtocolToken]Index
	Oracles         map[AssetPair]decimal.Decimal
	RiskParams      map[ProtocolAsset]RiskParams
	StakingRewards  map[ProtocolAsset]decimal.Decimal
}

// Merge copies every populated field of other into s, used to assemble a
// tick's full Snapshot out of independently loaded per-category partials.
func (s Snapshot) Merge(other Snapshot) {
	for k, v := range other.PricesUSD {
		s.PricesUSD[k] = v
	}
	for k, v := range other.PricesReference {
		s.PricesReference[k] = v
	}
	for k, v := range other.Funding {
		s.Funding[k] = v
	}
	for k, v := range other.LendingRates {
		s.LendingRates[k] = v
	}
	for k, v := range other.Indices {
		s.Indices[k] = v
	}
	for k, v := range other.Oracles {
		s.Oracles[k] = v
	}
	for k, v := range other.RiskParams {
		s.RiskParams[k] = v
	}
	for k, v := range other.StakingRewards {
		s.StakingRewards[k] = v
	}
}

func NewEmptySnapshot() Snapshot {
	return Snapshot{
		PricesUSD:       make(map[string]decimal.Decimal),
		PricesReference: make(map[string]decimal.Decimal),
		Funding:         make(map[VenueInstrument]decimal.Decimal),
		LendingRates:    make(map[ProtocolAsset]LendingRate),
		Indices:         make(map[ProtocolToken]Index),
		Oracles:         make(map[AssetPair]decimal.Decimal),
		RiskParams:      make(map[ProtocolAsset]RiskParams),
		StakingRewards:  make(map[ProtocolAsset]decimal.Decimal),
	}
}
