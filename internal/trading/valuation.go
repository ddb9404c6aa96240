package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vtrade/internal/ledger"
	"vtrade/internal/marketdata"
	"vtrade/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	maxPercentage = decimal.RequireFromString("999999.9999")
	minPercentage = maxPercentage.Neg()
	hundred       = decimal.NewFromInt(100)
)

// percentage is clamp(round4(num / den * 100)); zero when den is zero.
func percentage(num, den int64) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	pct := decimal.NewFromInt(num).Mul(hundred).DivRound(decimal.NewFromInt(den), 4)
	if pct.GreaterThan(maxPercentage) {
		return maxPercentage
	}
	if pct.LessThan(minPercentage) {
		return minPercentage
	}
	return pct
}

// quoteSet holds the quotes gathered for one valuation. Symbols the oracle
// was already asked for are remembered even when no price came back.
type quoteSet struct {
	prices map[string]marketdata.Quote
	asked  map[string]struct{}
}

func newQuoteSet() quoteSet {
	return quoteSet{prices: make(map[string]marketdata.Quote), asked: make(map[string]struct{})}
}

func (qs quoteSet) put(code string, q marketdata.Quote) {
	qs.asked[code] = struct{}{}
	qs.prices[code] = q
}

// fetchQuotes asks the oracle concurrently for every symbol not asked before.
// Symbols without a price stay missing from qs.prices.
func (s *Service) fetchQuotes(ctx context.Context, qs quoteSet, symbols []string) {
	pending := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if _, done := qs.asked[sym]; done {
			continue
		}
		qs.asked[sym] = struct{}{}
		pending = append(pending, sym)
	}
	if len(pending) == 0 {
		return
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.QuoteLimit)
	for _, sym := range pending {
		g.Go(func() error {
			q, err := s.quote(gctx, sym)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", sym).Msg("quote unavailable, holding keeps stale price")
				return nil
			}
			mu.Lock()
			qs.prices[sym] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) quote(ctx context.Context, symbol string) (marketdata.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PriceTimeout)
	defer cancel()
	q, err := s.oracle.LatestQuote(ctx, symbol)
	if err != nil {
		if !errors.Is(err, ErrPriceUnavailable) {
			err = fmt.Errorf("%s: %v: %w", symbol, err, ErrPriceUnavailable)
		}
		return marketdata.Quote{}, err
	}
	if q.Price <= 0 {
		return marketdata.Quote{}, fmt.Errorf("%s: non-positive price: %w", symbol, ErrPriceUnavailable)
	}
	return q, nil
}

func holdingSymbols(holdings []model.Holding) []string {
	out := make([]string, len(holdings))
	for i, h := range holdings {
		out[i] = h.SymbolCode
	}
	return out
}

// revalue marks holdings to the given quotes and recomputes the portfolio
// totals. It returns the holdings that received a price. Holdings without a
// quote keep their previous fields and are left out of stockValue.
// Quantity, average price and total cost are never changed.
func revalue(p model.Portfolio, holdings []model.Holding, quotes map[string]marketdata.Quote, now time.Time) (model.Portfolio, []model.Holding) {
	priced := make([]model.Holding, 0, len(holdings))
	var stockValue int64
	for _, h := range holdings {
		q, ok := quotes[h.SymbolCode]
		if !ok {
			continue
		}
		at := now
		h.CurrentPrice = q.Price
		h.CurrentValue = h.Quantity * q.Price
		h.UnrealizedProfitLoss = h.CurrentValue - h.TotalCost
		h.ProfitLossPercentage = percentage(h.UnrealizedProfitLoss, h.TotalCost)
		h.LastPriceUpdate = &at
		stockValue += h.CurrentValue
		priced = append(priced, h)
	}
	p.StockValue = stockValue
	p.TotalAssetValue = p.CashBalance + stockValue
	p.TotalProfitLoss = p.TotalAssetValue - p.InitialCashBalance
	p.ProfitLossPercentage = percentage(p.TotalProfitLoss, p.InitialCashBalance)
	return p, priced
}

// applyValuation revalues inside tx and persists the result. Holdings that
// appeared after qs was prefetched are quoted here, under the lock.
func (s *Service) applyValuation(ctx context.Context, tx ledger.Tx, p model.Portfolio, qs quoteSet, now time.Time) (model.Portfolio, []model.Holding, error) {
	holdings, err := tx.Holdings(ctx, p.ID)
	if err != nil {
		return model.Portfolio{}, nil, err
	}
	s.fetchQuotes(ctx, qs, holdingSymbols(holdings))
	p, priced := revalue(p, holdings, qs.prices, now)
	saved := make(map[string]model.Holding, len(priced))
	for _, h := range priced {
		out, err := tx.SaveHolding(ctx, h)
		if err != nil {
			return model.Portfolio{}, nil, fmt.Errorf("save holding %s: %w", h.SymbolCode, err)
		}
		saved[h.SymbolCode] = out
	}
	for i, h := range holdings {
		if out, ok := saved[h.SymbolCode]; ok {
			holdings[i] = out
		}
	}
	if err := tx.SavePortfolio(ctx, p); err != nil {
		return model.Portfolio{}, nil, err
	}
	return p, holdings, nil
}

// Revalue marks every holding of the portfolio to the latest oracle price and
// refreshes the portfolio totals.
func (s *Service) Revalue(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	p, _, _, err := s.revalueWithQuotes(ctx, portfolioID)
	return p, err
}

func (s *Service) revalueWithQuotes(ctx context.Context, portfolioID string) (model.Portfolio, []model.Holding, map[string]marketdata.Quote, error) {
	current, err := s.store.Holdings(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, nil, nil, err
	}
	qs := newQuoteSet()
	s.fetchQuotes(ctx, qs, holdingSymbols(current))

	var p model.Portfolio
	var holdings []model.Holding
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, err := tx.LockPortfolioByID(ctx, portfolioID)
		if err != nil {
			return err
		}
		p, holdings, err = s.applyValuation(ctx, tx, locked, qs, s.now())
		return err
	})
	if err != nil {
		return model.Portfolio{}, nil, nil, fmt.Errorf("revalue portfolio %s: %w", portfolioID, err)
	}
	return p, holdings, qs.prices, nil
}

type RevalueSummary struct {
	Portfolios int `json:"portfolios"`
	Revalued   int `json:"revalued"`
	Failed     int `json:"failed"`
}

// RevalueAll revalues every active portfolio one after another. Failures are
// logged and counted.
func (s *Service) RevalueAll(ctx context.Context) (RevalueSummary, error) {
	ids, err := s.store.ActivePortfolioIDs(ctx)
	if err != nil {
		return RevalueSummary{}, err
	}
	sum := RevalueSummary{Portfolios: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		p, err := s.Revalue(ctx, id)
		if err != nil {
			sum.Failed++
			s.log.Error().Err(err).Str("portfolio_id", id).Msg("revalue failed")
			continue
		}
		sum.Revalued++
		s.publish(p.UserID, marketdata.EventPortfolio, p)
	}
	s.log.Info().Int("portfolios", sum.Portfolios).Int("failed", sum.Failed).Msg("revaluation finished")
	return sum, nil
}
