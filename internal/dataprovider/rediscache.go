package dataprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// wireSeries is the msgpack-friendly form of CategorySeries: tick times
// as Unix nanoseconds alongside their Snapshots, encoded with msgpack's
// default handling of the nested types (decimal.Decimal through its own
// marshalling methods), without a bespoke schema.
type wireSeries struct {
	Ticks []int64    `msgpack:"ticks"`
	Data  []Snapshot `msgpack:"data"`
}

// RedisCache backs SeriesCache with a shared redis instance, so a category
// loaded once (e.g. a month of hourly lending rates) is reused across
// repeated backtest invocations instead of being re-parsed from the
// historical source every run. It degrades to a cache-miss, not an error,
// on any redis failure — the historical source remains the source of
// truth, so idempotence holds regardless of cache state.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: keyPrefix, ttl: ttl}
}

func (c *RedisCache) key(category DataCategory) string {
	return fmt.Sprintf("%s:series:%s", c.prefix, category)
}

func (c *RedisCache) Get(category DataCategory) (CategorySeries, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.rdb.Get(ctx, c.key(category)).Bytes()
	if err != nil {
		return nil, false
	}
	var w wireSeries
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return nil, false
	}
	series := make(CategorySeries, len(w.Ticks))
	for i, t := range w.Ticks {
		series[time.Unix(0, t).UTC()] = w.Data[i]
	}
	return series, true
}

func (c *RedisCache) Set(category DataCategory, series CategorySeries) {
	w := wireSeries{Ticks: make([]int64, 0, len(series)), Data: make([]Snapshot, 0, len(series))}
	for t, snap := range series {
		w.Ticks = append(w.Ticks, t.UnixNano())
		w.Data = append(w.Data, snap)
	}
	raw, err := msgpack.Marshal(w)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = c.rdb.Set(ctx, c.key(category), raw, c.ttl).Err()
}
