package history

// cacheEntry is the persisted form of one cache record: a [hash, summary]
// pair.
type cacheEntry [2]string

// fifoCache is a bounded map that evicts in insertion order. Overwriting an
// existing key keeps its original position.
type fifoCache struct {
	capacity int
	order    []string
	values   map[string]string
}

func newFIFOCache(capacity int) *fifoCache {
	return &fifoCache{
		capacity: capacity,
		values:   make(map[string]string),
	}
}

func (c *fifoCache) get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *fifoCache) set(key, value string) {
	if _, ok := c.values[key]; !ok {
		c.order = append(c.order, key)
	}
	c.values[key] = value

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.values, oldest)
	}
}

func (c *fifoCache) len() int {
	return len(c.order)
}

// entries returns the records oldest first.
func (c *fifoCache) entries() []cacheEntry {
	out := make([]cacheEntry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, cacheEntry{k, c.values[k]})
	}

	return out
}

// load replaces the contents with entries, applying the capacity bound.
func (c *fifoCache) load(entries []cacheEntry) {
	c.order = nil
	c.values = make(map[string]string, len(entries))
	for _, e := range entries {
		c.set(e[0], e[1])
	}
}
