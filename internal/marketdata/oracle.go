package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrPriceUnavailable = errors.New("price unavailable")

// Quote is the latest known price of a symbol in integer minor units.
// PrevClose is the previous session close, zero when unknown.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     int64     `json:"price"`
	PrevClose int64     `json:"prev_close,omitempty"`
	AsOf      time.Time `json:"as_of"`
}

// PriceOracle returns the latest quote for a symbol or an error wrapping
// ErrPriceUnavailable.
type PriceOracle interface {
	LatestQuote(ctx context.Context, symbol string) (Quote, error)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func unavailable(symbol string, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", symbol, fmt.Sprintf(format, args...), ErrPriceUnavailable)
}

// StaticOracle serves prices set in process.
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{quotes: make(map[string]Quote)}
}

func (o *StaticOracle) Set(symbol string, price, prevClose int64) {
	symbol = normalizeSymbol(symbol)
	o.mu.Lock()
	o.quotes[symbol] = Quote{Symbol: symbol, Price: price, PrevClose: prevClose, AsOf: time.Now().UTC()}
	o.mu.Unlock()
}

func (o *StaticOracle) Remove(symbol string) {
	o.mu.Lock()
	delete(o.quotes, normalizeSymbol(symbol))
	o.mu.Unlock()
}

func (o *StaticOracle) LatestQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = normalizeSymbol(symbol)
	o.mu.RLock()
	q, ok := o.quotes[symbol]
	o.mu.RUnlock()
	if !ok || q.Price <= 0 {
		return Quote{}, unavailable(symbol, "no static price")
	}
	return q, nil
}

// DisabledOracle never has a price. Market orders fail with
// ErrPriceUnavailable while limit orders still execute.
type DisabledOracle struct{}

func NewDisabledOracle() *DisabledOracle {
	return &DisabledOracle{}
}

func (DisabledOracle) LatestQuote(ctx context.Context, symbol string) (Quote, error) {
	return Quote{}, unavailable(normalizeSymbol(symbol), "price oracle not configured")
}
