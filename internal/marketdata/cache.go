package marketdata

import (
	"context"
	"sync"
	"time"
)

type cachedQuote struct {
	quote   Quote
	fetched time.Time
}

// CachedOracle keeps successful quotes for ttl. Failures are never cached.
type CachedOracle struct {
	next  PriceOracle
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	cache map[string]cachedQuote
}

func NewCachedOracle(next PriceOracle, ttl time.Duration) *CachedOracle {
	return &CachedOracle{next: next, ttl: ttl, now: time.Now, cache: make(map[string]cachedQuote)}
}

func (o *CachedOracle) LatestQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = normalizeSymbol(symbol)
	o.mu.RLock()
	if c, ok := o.cache[symbol]; ok && o.now().Sub(c.fetched) < o.ttl {
		o.mu.RUnlock()
		return c.quote, nil
	}
	o.mu.RUnlock()

	q, err := o.next.LatestQuote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	o.mu.Lock()
	o.cache[symbol] = cachedQuote{quote: q, fetched: o.now()}
	o.mu.Unlock()
	return q, nil
}
