package dataprovider

// TieredCache checks an in-process MemoryCache before falling back to a
// shared backing cache (typically RedisCache). A hit against the backing
// cache is promoted into the memory tier so later ticks in the same run
// never pay the network round trip.
type TieredCache struct {
	mem     *MemoryCache
	backing SeriesCache
}

func NewTieredCache(backing SeriesCache) *TieredCache {
	return &TieredCache{mem: NewMemoryCache(), backing: backing}
}

func (c *TieredCache) Get(category DataCategory) (CategorySeries, bool) {
	if s, ok := c.mem.Get(category); ok {
		return s, true
	}
	if c.backing == nil {
		return nil, false
	}
	s, ok := c.backing.Get(category)
	if ok {
		c.mem.Set(category, s)
	}
	return s, ok
}

func (c *TieredCache) Set(category DataCategory, series CategorySeries) {
	c.mem.Set(category, series)
	if c.backing != nil {
		c.backing.Set(category, series)
	}
}
