package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vtrade/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSymbolNotFound = errors.New("symbol not found")

// Catalog resolves tradable symbol codes. It is read-only here.
type Catalog interface {
	Symbol(ctx context.Context, code string) (model.Symbol, error)
}

type PGCatalog struct {
	pool *pgxpool.Pool
}

func NewPGCatalog(pool *pgxpool.Pool) *PGCatalog {
	return &PGCatalog{pool: pool}
}

func (c *PGCatalog) Symbol(ctx context.Context, code string) (model.Symbol, error) {
	code = normalizeSymbol(code)
	var s model.Symbol
	err := c.pool.QueryRow(ctx, "select symbol, coalesce(organ_short_name, '') from symbols where symbol = $1", code).Scan(&s.Code, &s.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Symbol{}, fmt.Errorf("%s: %w", code, ErrSymbolNotFound)
	}
	return s, err
}

type MemoryCatalog struct {
	mu      sync.RWMutex
	symbols map[string]model.Symbol
}

func NewMemoryCatalog(symbols ...model.Symbol) *MemoryCatalog {
	c := &MemoryCatalog{symbols: make(map[string]model.Symbol, len(symbols))}
	for _, s := range symbols {
		c.Add(s)
	}
	return c
}

func (c *MemoryCatalog) Add(s model.Symbol) {
	s.Code = normalizeSymbol(s.Code)
	c.mu.Lock()
	c.symbols[s.Code] = s
	c.mu.Unlock()
}

func (c *MemoryCatalog) Symbol(ctx context.Context, code string) (model.Symbol, error) {
	code = normalizeSymbol(code)
	c.mu.RLock()
	s, ok := c.symbols[code]
	c.mu.RUnlock()
	if !ok {
		return model.Symbol{}, fmt.Errorf("%s: %w", code, ErrSymbolNotFound)
	}
	return s, nil
}
