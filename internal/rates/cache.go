package rates

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type pairKey struct {
	from string
	to   string
	day  string
}

func newPairKey(from, to string, day time.Time) pairKey {
	return pairKey{from: from, to: to, day: day.Format("2006-01-02")}
}

// Cache memoizes resolved rates and provider tables for a single run. It is
// never evicted; create a new one per run.
type Cache struct {
	mu     sync.Mutex
	rates  map[pairKey]decimal.Decimal
	misses map[pairKey]bool
	tables map[string]Table
}

func NewCache() *Cache {
	return &Cache{
		rates:  make(map[pairKey]decimal.Decimal),
		misses: make(map[pairKey]bool),
		tables: make(map[string]Table),
	}
}

func (c *Cache) get(k pairKey) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rates[k]
	return r, ok
}

func (c *Cache) put(k pairKey, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[k] = rate
	delete(c.misses, k)
}

func (c *Cache) missed(k pairKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses[k]
}

func (c *Cache) markMiss(k pairKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses[k] = true
}

func tableKey(base string, day time.Time) string {
	return strings.ToUpper(base) + "@" + day.Format("2006-01-02")
}

func (c *Cache) table(base string, day time.Time) (Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[tableKey(base, day)]
	return t, ok
}

func (c *Cache) putTable(base string, day time.Time, t Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tableKey(base, day)] = t
}

// Len reports how many pair rates are memoized.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rates)
}
