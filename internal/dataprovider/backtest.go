package dataprovider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/basisengine/internal/errs"
)

// BacktestProvider implements Provider over a HistoricalSource with
// on-demand, load-once-per-category semantics: the first GetData call
// touching a declared category triggers a bulk load of that category's
// full series; every later call, at any timestamp, is a pure map lookup.
// Categories never declared by the mode are never read.
type BacktestProvider struct {
	mu         sync.Mutex
	log        zerolog.Logger
	source     HistoricalSource
	cache      SeriesCache
	categories []DataCategory
}

func NewBacktestProvider(source HistoricalSource, cache SeriesCache, categories []DataCategory, log zerolog.Logger) *BacktestProvider {
	return &BacktestProvider{
		log:        log.With().Str("component", "dataprovider.BacktestProvider").Logger(),
		source:     source,
		cache:      cache,
		categories: categories,
	}
}

// GetData returns the merged snapshot for at, failing with errs.DataMissing
// if any declared category has no entry for that exact timestamp. Because
// every category is loaded once into an immutable series and every lookup
// for a given timestamp returns the same map entry, two calls for the same
// timestamp are byte-identical.
func (p *BacktestProvider) GetData(ctx context.Context, at time.Time) (Snapshot, error) {
	result := NewEmptySnapshot()

	for _, category := range p.categories {
		series, err := p.seriesFor(ctx, category)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: category %s: %v", errs.DataMissing, category, err)
		}
		partial, ok := series[at]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: category %s has no entry at %s", errs.DataMissing, category, at)
		}
		result.Merge(partial)
	}
	return result, nil
}

func (p *BacktestProvider) seriesFor(ctx context.Context, category DataCategory) (CategorySeries, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if series, ok := p.cache.Get(category); ok {
		return series, nil
	}

	p.log.Info().Str("category", string(category)).Msg("loading data category on demand")
	series, err := p.source.LoadCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	p.cache.Set(category, series)
	return series, nil
}
