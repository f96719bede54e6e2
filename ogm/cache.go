package ogm

// Result is one row of an association query: the resolved node and, for
// statements of pair shape, the traversed relationship.
type Result struct {
	Node Model
	Rel  Relationship
}

// Entry is a cached query result. Row-shaped statements fill Results;
// count, exists and pluck statements fill Scalar.
type Entry struct {
	Results []Result
	Scalar  any
}

// AssociationCache stores the results of association queries issued from
// one owner record. It belongs to exactly one owner and is not safe for
// concurrent use.
type AssociationCache struct {
	entries map[CacheKey]*Entry
	// gen changes on every clear so a load that straddles a clear is dropped.
	gen uint64
}

// NewAssociationCache creates an empty cache.
func NewAssociationCache() *AssociationCache {
	return &AssociationCache{entries: make(map[CacheKey]*Entry)}
}

// Fetch returns the entry stored under key, or runs loader, stores its
// result and returns it. Loader errors are returned and nothing is stored.
// The cache holds no state across the loader call, so a loader may read
// from or clear the same cache.
func (c *AssociationCache) Fetch(key CacheKey, loader func() (*Entry, error)) (*Entry, error) {
	if e, ok := c.entries[key]; ok {
		cacheHits.Inc()
		logger().Debug("association cache hit", "key", key.String())
		return e, nil
	}
	cacheMisses.Inc()
	gen := c.gen
	e, err := loader()
	if err != nil {
		return nil, err
	}
	if c.gen == gen {
		c.entries[key] = e
	}
	return e, nil
}

// Get returns the entry stored under key without loading.
func (c *AssociationCache) Get(key CacheKey) (*Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Put stores an entry, replacing any previous one. Eager loading uses it to
// fill the caches of the records it returns.
func (c *AssociationCache) Put(key CacheKey, e *Entry) {
	c.entries[key] = e
}

// Clear removes every entry of one association.
func (c *AssociationCache) Clear(association string) {
	for k := range c.entries {
		if k.Association == association {
			delete(c.entries, k)
		}
	}
	c.gen++
}

// ClearAll removes every entry.
func (c *AssociationCache) ClearAll() {
	clear(c.entries)
	c.gen++
}

// Len returns the number of cached entries.
func (c *AssociationCache) Len() int {
	return len(c.entries)
}
