package trading

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vtrade/internal/costbasis"
	"vtrade/internal/types"

	"github.com/shopspring/decimal"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
	anonymousName           = "Anonymous"
)

type RankedEntry struct {
	Rank                 int             `json:"rank"`
	UserID               string          `json:"user_id"`
	DisplayName          string          `json:"display_name"`
	TotalAssetValue      int64           `json:"total_asset_value"`
	CashBalance          int64           `json:"cash_balance"`
	StockValue           int64           `json:"stock_value"`
	ProfitLoss           int64           `json:"profit_loss"`
	UnrealizedProfitLoss int64           `json:"unrealized_profit_loss"`
	RealizedProfitLoss   int64           `json:"realized_profit_loss"`
	ProfitLossPercentage decimal.Decimal `json:"profit_loss_percentage"`
	TotalTransactions    int             `json:"total_transactions"`
	SuccessfulTrades     int             `json:"successful_trades"`
	CreatedAt            time.Time       `json:"created_at"`
}

func clampLimit(limit, def, max int) int {
	switch {
	case limit == 0:
		return def
	case limit < 1:
		return 1
	case limit > max:
		return max
	}
	return limit
}

// ParseLeaderboardSort maps an empty value to percentage.
func ParseLeaderboardSort(v string) (types.LeaderboardSort, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return types.LeaderboardSortPercentage, nil
	}
	sortBy := types.LeaderboardSort(v)
	if !sortBy.Valid() {
		return "", fmt.Errorf("%w: sort_by must be value or percentage", ErrInvalidInput)
	}
	return sortBy, nil
}

// Leaderboard ranks active portfolios with at least one transaction. It reads
// committed state only and never revalues.
func (s *Service) Leaderboard(ctx context.Context, limit int, sortBy types.LeaderboardSort) ([]RankedEntry, error) {
	if sortBy == "" {
		sortBy = types.LeaderboardSortPercentage
	}
	if !sortBy.Valid() {
		return nil, fmt.Errorf("%w: sort_by must be value or percentage", ErrInvalidInput)
	}
	limit = clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)

	portfolios, err := s.store.Leaderboard(ctx, sortBy, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]RankedEntry, 0, len(portfolios))
	for i, p := range portfolios {
		holdings, err := s.store.Holdings(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		var unrealized int64
		for _, h := range holdings {
			unrealized += h.UnrealizedProfitLoss
		}
		history, err := s.store.History(ctx, p.ID, "")
		if err != nil {
			return nil, err
		}
		out = append(out, RankedEntry{
			Rank:                 i + 1,
			UserID:               p.UserID,
			DisplayName:          s.displayName(ctx, p.UserID),
			TotalAssetValue:      p.TotalAssetValue,
			CashBalance:          p.CashBalance,
			StockValue:           p.StockValue,
			ProfitLoss:           p.TotalProfitLoss,
			UnrealizedProfitLoss: unrealized,
			RealizedProfitLoss:   costbasis.RealizedProfitLoss(history),
			ProfitLossPercentage: p.ProfitLossPercentage,
			TotalTransactions:    p.TotalTransactions,
			SuccessfulTrades:     p.SuccessfulTrades,
			CreatedAt:            p.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	if s.dir == nil {
		return anonymousName
	}
	name, err := s.dir.DisplayName(ctx, userID)
	if err != nil || strings.TrimSpace(name) == "" {
		return anonymousName
	}
	return name
}
