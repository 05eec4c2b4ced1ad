package monitor

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"cryptoalert/internal/alert"
)

type CachedPrice struct {
	Value        decimal.Decimal  `json:"value"`
	PctChange24h *decimal.Decimal `json:"pct_change_24h,omitempty"`
	ObservedAt   time.Time        `json:"observed_at"`
}

// PriceCache keeps the last sample seen per resource. It is informational;
// evaluation always uses the samples fetched in the same cycle.
type PriceCache struct {
	mu    sync.RWMutex
	items map[string]CachedPrice
}

func (c *PriceCache) Update(samples map[string]alert.Sample, at time.Time) {
	if len(samples) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]CachedPrice, len(samples))
	}
	for key, s := range samples {
		c.items[key] = CachedPrice{Value: s.Value, PctChange24h: s.PctChange24h, ObservedAt: at}
	}
}

func (c *PriceCache) Get(key string) (CachedPrice, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *PriceCache) Snapshot() map[string]CachedPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]CachedPrice, len(c.items))
	for k, v := range c.items {
		out[k] = v
	}
	return out
}
