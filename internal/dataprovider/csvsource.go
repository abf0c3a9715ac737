package dataprovider

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// CSVHistoricalSource implements HistoricalSource over a directory of
// per-category CSV files, one row per (timestamp, key) observation. This
// is the concrete backtest upstream for local/offline runs; a warehouse-
// backed or vendor-fed HistoricalSource is a separate implementation of
// the same interface.
type CSVHistoricalSource struct {
	dir string
}

func NewCSVHistoricalSource(dir string) *CSVHistoricalSource {
	return &CSVHistoricalSource{dir: dir}
}

// LoadCategory reads <dir>/<category>.csv in full and returns one
// Snapshot per distinct timestamp column value, each populated with only
// the fields belonging to that category.
func (s *CSVHistoricalSource) LoadCategory(ctx context.Context, category DataCategory) (CategorySeries, error) {
	path := filepath.Join(s.dir, string(category)+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	col := columnIndex(header)

	series := make(CategorySeries)
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		at, err := time.Parse(time.RFC3339, record[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("parse timestamp in %s: %w", path, err)
		}
		snap, ok := series[at]
		if !ok {
			snap = NewEmptySnapshot()
		}
		if err := applyRow(category, snap, record, col); err != nil {
			return nil, fmt.Errorf("parse row in %s: %w", path, err)
		}
		series[at] = snap
	}
	return series, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	return idx
}

func dec(record []string, col map[string]int, name string) decimal.Decimal {
	v, ok := col[name]
	if !ok {
		return decimal.Zero
	}
	d, _ := decimal.NewFromString(record[v])
	return d
}

func str(record []string, col map[string]int, name string) string {
	v, ok := col[name]
	if !ok {
		return ""
	}
	return record[v]
}

// applyRow fills in snap's category-specific fields from one CSV row.
// Unknown categories are rejected rather than silently ignored, since a
// typo in a mode's data_requirements must fail loudly at load time.
func applyRow(category DataCategory, snap Snapshot, record []string, col map[string]int) error {
	switch category {
	case CategoryPrices:
		symbol := str(record, col, "symbol")
		snap.PricesUSD[symbol] = dec(record, col, "price_usd")
		snap.PricesReference[symbol] = dec(record, col, "price_reference")
	case CategoryFunding:
		key := VenueInstrument{Venue: str(record, col, "venue"), Instrument: str(record, col, "instrument")}
		snap.Funding[key] = dec(record, col, "rate")
	case CategoryLendingRates:
		key := ProtocolAsset{Protocol: str(record, col, "protocol"), Asset: str(record, col, "asset")}
		snap.LendingRates[key] = LendingRate{
			SupplyRate: dec(record, col, "supply_rate"),
			BorrowRate: dec(record, col, "borrow_rate"),
		}
	case CategoryIndices:
		key := ProtocolToken{Protocol: str(record, col, "protocol"), Token: str(record, col, "token")}
		snap.Indices[key] = Index{
			LiquidityIndex: dec(record, col, "liquidity_index"),
			BorrowIndex:    dec(record, col, "borrow_index"),
		}
	case CategoryOracles:
		key := AssetPair{Base: str(record, col, "base"), Quote: str(record, col, "quote")}
		snap.Oracles[key] = dec(record, col, "price")
	case CategoryRiskParams:
		key := ProtocolAsset{Protocol: str(record, col, "protocol"), Asset: str(record, col, "asset")}
		snap.RiskParams[key] = RiskParams{
			LiquidationThreshold: dec(record, col, "liquidation_threshold"),
			LiquidationBonus:     dec(record, col, "liquidation_bonus"),
			LTVCap:               dec(record, col, "ltv_cap"),
		}
	case CategoryStakingRewards:
		key := ProtocolAsset{Protocol: str(record, col, "protocol"), Asset: str(record, col, "asset")}
		snap.StakingRewards[key] = dec(record, col, "rate")
	default:
		return fmt.Errorf("unrecognized data category %q", category)
	}
	return nil
}
