package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vtrade/internal/costbasis"
	"vtrade/internal/ledger"
	"vtrade/internal/marketdata"
	"vtrade/internal/model"

	"github.com/shopspring/decimal"
)

// OpenPortfolio creates the user's portfolio with the initial grant. Calling
// it again returns the existing portfolio unchanged, and after deactivation it
// reactivates the closed one, so the grant is made once per user.
func (s *Service) OpenPortfolio(ctx context.Context, userID string) (model.Portfolio, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return model.Portfolio{}, false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	cash := s.cfg.InitialCash
	p, created, err := s.store.EnsurePortfolio(ctx, model.Portfolio{
		UserID:               userID,
		CashBalance:          cash,
		InitialCashBalance:   cash,
		TotalAssetValue:      cash,
		ProfitLossPercentage: decimal.Zero,
	})
	if err != nil {
		return model.Portfolio{}, false, fmt.Errorf("open portfolio: %w", err)
	}
	if created {
		s.log.Info().Str("user_id", userID).Str("portfolio_id", p.ID).Int64("cash", cash).Msg("portfolio opened")
		s.publish(userID, marketdata.EventPortfolio, p)
	}
	return p, created, nil
}

type HoldingView struct {
	model.Holding
	SymbolName     string `json:"symbol_name"`
	YesterdayPrice *int64 `json:"yesterday_price"`
}

type PortfolioSummary struct {
	Portfolio            model.Portfolio `json:"portfolio"`
	Holdings             []HoldingView   `json:"holdings"`
	UnrealizedProfitLoss int64           `json:"unrealized_profit_loss"`
	RealizedProfitLoss   int64           `json:"realized_profit_loss"`
}

// GetPortfolio revalues the user's portfolio and returns it with holdings.
func (s *Service) GetPortfolio(ctx context.Context, userID string) (PortfolioSummary, error) {
	p, err := s.store.PortfolioByUser(ctx, userID)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("portfolio: %w", err)
	}
	p, holdings, quotes, err := s.revalueWithQuotes(ctx, p.ID)
	if err != nil {
		return PortfolioSummary{}, err
	}
	history, err := s.store.History(ctx, p.ID, "")
	if err != nil {
		return PortfolioSummary{}, err
	}

	sum := PortfolioSummary{
		Portfolio:          p,
		Holdings:           make([]HoldingView, 0, len(holdings)),
		RealizedProfitLoss: costbasis.RealizedProfitLoss(history),
	}
	for _, h := range holdings {
		view := HoldingView{Holding: h, SymbolName: h.SymbolCode}
		if sym, err := s.catalog.Symbol(ctx, h.SymbolCode); err == nil {
			view.SymbolName = sym.DisplayName()
		}
		if q, ok := quotes[h.SymbolCode]; ok && q.PrevClose > 0 {
			prev := q.PrevClose
			view.YesterdayPrice = &prev
		}
		sum.UnrealizedProfitLoss += h.UnrealizedProfitLoss
		sum.Holdings = append(sum.Holdings, view)
	}
	return sum, nil
}

// DeactivatePortfolio closes the user's active portfolio. Rows are kept.
func (s *Service) DeactivatePortfolio(ctx context.Context, userID string) (model.Portfolio, error) {
	var out model.Portfolio
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p, err := tx.LockPortfolio(ctx, userID)
		if err != nil {
			return fmt.Errorf("portfolio: %w", err)
		}
		p.IsActive = false
		if err := tx.SavePortfolio(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Portfolio{}, err
	}
	s.log.Info().Str("user_id", userID).Str("portfolio_id", out.ID).Msg("portfolio deactivated")
	s.publish(userID, marketdata.EventPortfolio, out)
	return out, nil
}

type PriceInfo struct {
	Symbol    string    `json:"symbol"`
	Price     *int64    `json:"price"`
	PrevClose *int64    `json:"prev_close"`
	Timestamp time.Time `json:"timestamp"`
}

// StockPrice returns the latest quote. An unavailable price is reported as a
// nil Price, not an error.
func (s *Service) StockPrice(ctx context.Context, symbol string) (PriceInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return PriceInfo{}, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}
	info := PriceInfo{Symbol: symbol, Timestamp: s.now()}
	q, err := s.quote(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("price lookup failed")
		return info, nil
	}
	info.Price = &q.Price
	if q.PrevClose > 0 {
		info.PrevClose = &q.PrevClose
	}
	if !q.AsOf.IsZero() {
		info.Timestamp = q.AsOf
	}
	return info, nil
}
