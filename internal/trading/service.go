package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vtrade/internal/ledger"
	"vtrade/internal/marketdata"
	"vtrade/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultInitialCash = int64(1_000_000_000)
	defaultQuoteLimit  = 8
)

var (
	DefaultFeeRate = decimal.RequireFromString("0.0001")
	DefaultTaxRate = decimal.RequireFromString("0.001")
)

type Settings struct {
	FeeRate      decimal.Decimal
	TaxRate      decimal.Decimal
	InitialCash  int64
	PriceTimeout time.Duration
	// QuoteLimit bounds concurrent oracle calls during revaluation.
	QuoteLimit int
}

func DefaultSettings() Settings {
	return Settings{
		FeeRate:      DefaultFeeRate,
		TaxRate:      DefaultTaxRate,
		InitialCash:  DefaultInitialCash,
		PriceTimeout: 8 * time.Second,
		QuoteLimit:   defaultQuoteLimit,
	}
}

// Directory resolves public display names for the leaderboard.
type Directory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type Service struct {
	store   ledger.Store
	oracle  marketdata.PriceOracle
	catalog marketdata.Catalog
	bus     *marketdata.Bus
	dir     Directory
	cfg     Settings
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(store ledger.Store, oracle marketdata.PriceOracle, catalog marketdata.Catalog, bus *marketdata.Bus, cfg Settings, log zerolog.Logger) *Service {
	if cfg.QuoteLimit <= 0 {
		cfg.QuoteLimit = defaultQuoteLimit
	}
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = 8 * time.Second
	}
	return &Service{
		store:   store,
		oracle:  oracle,
		catalog: catalog,
		bus:     bus,
		cfg:     cfg,
		log:     log.With().Str("service", "trading").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithDirectory sets the display-name source used by the leaderboard.
func (s *Service) WithDirectory(d Directory) *Service {
	s.dir = d
	return s
}

func (s *Service) symbol(ctx context.Context, code string) (model.Symbol, error) {
	sym, err := s.catalog.Symbol(ctx, code)
	if errors.Is(err, marketdata.ErrSymbolNotFound) {
		return model.Symbol{}, fmt.Errorf("symbol %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return model.Symbol{}, fmt.Errorf("lookup symbol %s: %w", code, err)
	}
	return sym, nil
}

func (s *Service) publish(userID, typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(marketdata.Event{Type: typ, UserID: userID, Data: data})
}
